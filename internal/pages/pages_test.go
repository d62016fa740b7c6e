package pages

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPhoneBR(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "5511999999999", want: "+55 (11) 99999-9999"},
		{in: "+55 (21) 3333-4444", want: "+55 (21) 3333-4444"},
		{in: "14155550100", want: "+14155550100"},
		{in: "55119", want: "+55119"},
		{in: "", want: ""},
		{in: "abc", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPhoneBR(tt.in))
		})
	}
}

func TestWhatsAppReturnLink(t *testing.T) {
	assert.Equal(t, "https://wa.me/5511988887777", WhatsAppReturnLink("+55 11 98888-7777"))
	assert.Equal(t, "whatsapp://send", WhatsAppReturnLink(""))
}

func TestSuccessPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Success(&buf, Success{
		Title:      "Agenda conectada!",
		Details:    "<b>jane@example.com</b>",
		ReturnLink: "https://wa.me/5511988887777",
	}))

	html := buf.String()
	assert.Contains(t, html, "Agenda conectada!")
	assert.Contains(t, html, "&lt;b&gt;jane@example.com&lt;/b&gt;", "details are escaped")
	assert.Contains(t, html, DefaultReturnLabel)
	assert.Contains(t, html, `href="https://wa.me/5511988887777"`)
	assert.Contains(t, html, "setTimeout")
	assert.Contains(t, html, "2000")
}

func TestSuccessPage_WhatsAppScheme(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Success(&buf, Success{Title: "ok", ReturnLink: WhatsAppReturnLink("")}))
	assert.Contains(t, buf.String(), `href="whatsapp://send"`)
}

func TestSuccessPage_NoReturnLink(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Success(&buf, Success{Title: "ok"}))
	assert.NotContains(t, buf.String(), "setTimeout")
}

func TestErrorAndBouncePages(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Error(&buf, "Link expirou", "Volte no WhatsApp"))
	assert.Contains(t, buf.String(), "Link expirou")
	assert.Contains(t, buf.String(), "Volte no WhatsApp")

	buf.Reset()
	require.NoError(t, r.Bounce(&buf, "/calendar/link/abc/go"))
	assert.Contains(t, buf.String(), `href="/calendar/link/abc/go"`)
	assert.Contains(t, buf.String(), "window.location.replace(")
}

func TestStaticPages(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Index(&buf))
	assert.Contains(t, buf.String(), "/politica-privacidade")

	buf.Reset()
	require.NoError(t, r.Privacy(&buf))
	assert.Contains(t, buf.String(), "Política de privacidade")
}
