// Package pages renders the HTML pages shown to people linking a calendar.
package pages

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"unicode"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultReturnLabel is the label of the button back to WhatsApp.
const DefaultReturnLabel = "Voltar para o WhatsApp"

// Success is the data of the page shown after a calendar was linked.
type Success struct {
	Title       string
	Subtitle    string
	Details     string
	ReturnLink  string
	ReturnLabel string
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Success renders the success page. When ReturnLink is set the page
// redirects to it after two seconds.
func (r *Renderer) Success(w io.Writer, p Success) error {
	if p.ReturnLabel == "" {
		p.ReturnLabel = DefaultReturnLabel
	}
	// The return link may use the whatsapp: scheme, which html/template
	// would otherwise replace.
	view := struct {
		Title, Subtitle, Details, ReturnLabel string
		ReturnLink                            template.URL
	}{
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Details:     p.Details,
		ReturnLabel: p.ReturnLabel,
		ReturnLink:  template.URL(p.ReturnLink),
	}
	return r.tmpl.ExecuteTemplate(w, "success", view)
}

// Error renders an error page.
func (r *Renderer) Error(w io.Writer, title, details string) error {
	return r.tmpl.ExecuteTemplate(w, "error", struct{ Title, Details string }{title, details})
}

// Bounce renders the page that forwards to goURL from a script, so that
// link previews in chat apps do not consume the one-shot link.
func (r *Renderer) Bounce(w io.Writer, goURL string) error {
	return r.tmpl.ExecuteTemplate(w, "bounce", struct{ GoURL string }{goURL})
}

// Index renders the landing page.
func (r *Renderer) Index(w io.Writer) error {
	return r.tmpl.ExecuteTemplate(w, "index", nil)
}

// Privacy renders the privacy policy.
func (r *Renderer) Privacy(w io.Writer) error {
	return r.tmpl.ExecuteTemplate(w, "privacy", nil)
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// FormatPhoneBR formats a Brazilian number as "+55 (DD) XXXXX-XXXX". Other
// numbers become "+<digits>", and input without digits becomes "".
func FormatPhoneBR(phone string) string {
	digits := digitsOnly(phone)
	if strings.HasPrefix(digits, "55") && len(digits) >= 12 {
		ddd := digits[2:4]
		rest := digits[4:]
		return fmt.Sprintf("+55 (%s) %s-%s", ddd, rest[:len(rest)-4], rest[len(rest)-4:])
	}
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// WhatsAppReturnLink returns the chat link for number, or the generic
// WhatsApp deep link when number has no digits.
func WhatsAppReturnLink(number string) string {
	if digits := digitsOnly(number); digits != "" {
		return "https://wa.me/" + digits
	}
	return "whatsapp://send"
}
