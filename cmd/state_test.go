package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStateCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newStateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStateIssueAndVerify(t *testing.T) {
	clearConfigEnv(t)

	token, err := runStateCmd(t, "issue", "5511999999999", "--state-signing-secret", "test-secret")
	require.NoError(t, err)
	token = strings.TrimSpace(token)
	require.Contains(t, token, ".")

	out, err := runStateCmd(t, "verify", token, "--state-signing-secret", "test-secret")
	require.NoError(t, err)

	var got verifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Valid)
	assert.Equal(t, "5511999999999", got.Subject)
	assert.NotEmpty(t, got.Nonce)
	assert.NotEmpty(t, got.ExpiresAt)
}

func TestStateVerify_WrongSecret(t *testing.T) {
	clearConfigEnv(t)

	token, err := runStateCmd(t, "issue", "5511999999999", "--state-signing-secret", "test-secret")
	require.NoError(t, err)

	out, err := runStateCmd(t, "verify", strings.TrimSpace(token), "--state-signing-secret", "other-secret")
	require.Error(t, err)

	var got verifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Valid)
	assert.Equal(t, "state_invalid_signature", got.Error)
}

func TestStateSecretFallsBackToClientSecret(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")

	token, err := runStateCmd(t, "issue", "5511999999999")
	require.NoError(t, err)

	_, err = runStateCmd(t, "verify", strings.TrimSpace(token), "--state-signing-secret", "client-secret")
	assert.NoError(t, err)
}

func TestStateIssue_RequiresSecret(t *testing.T) {
	clearConfigEnv(t)

	_, err := runStateCmd(t, "issue", "5511999999999")
	assert.EqualError(t, err, "missing required configuration: STATE_SIGNING_SECRET")
}
