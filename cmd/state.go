package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calendarlink/internal/state"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Issue and verify signed OAuth state tokens",
		Long: `Issue and verify the signed state tokens that carry a phone number
through the Google consent redirect. Useful for debugging callback failures.

The signing secret is read like in serve: --state-signing-secret,
STATE_SIGNING_SECRET, falling back to GOOGLE_CLIENT_SECRET.`,
	}

	cmd.PersistentFlags().String("state-signing-secret", "", "HMAC secret for OAuth state tokens. Can also use STATE_SIGNING_SECRET env var.")
	cmd.PersistentFlags().String("google-client-secret", "", "Fallback signing secret. Can also use GOOGLE_CLIENT_SECRET env var.")

	cmd.AddCommand(newStateIssueCmd())
	cmd.AddCommand(newStateVerifyCmd())
	return cmd
}

func newStateIssueCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue <phone>",
		Short: "Issue a state token for a phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := stateCodec(cmd, state.WithTTL(ttl))
			if err != nil {
				return err
			}
			token, err := codec.Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", state.DefaultTTL, "Token lifetime")
	return cmd
}

// verifyOutput is printed by state verify.
type verifyOutput struct {
	Valid     bool   `json:"valid"`
	Subject   string `json:"subject,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
	IssuedAt  string `json:"issued_at,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newStateVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a state token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := stateCodec(cmd)
			if err != nil {
				return err
			}

			out := verifyOutput{Valid: true}
			claims, verr := codec.Verify(args[0])
			if verr != nil {
				out = verifyOutput{Error: verr.Error()}
			} else {
				out.Subject = claims.Subject
				out.Nonce = claims.Nonce
				out.IssuedAt = claims.IssuedAt.UTC().Format(time.RFC3339)
				out.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if verr != nil {
				return errors.New("state token is not valid")
			}
			return nil
		},
	}
}

// stateCodec builds a codec from the configured signing secret.
func stateCodec(cmd *cobra.Command, opts ...state.Option) (*state.Codec, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.StateSigningSecret == "" {
		return nil, errors.New("missing required configuration: STATE_SIGNING_SECRET")
	}
	return state.NewCodec(cfg.StateSigningSecret, opts...)
}
