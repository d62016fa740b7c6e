package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calendarlink application
var rootCmd = &cobra.Command{
	Use:   "calendarlink",
	Short: "Links WhatsApp users to their Google Calendar",
	Long: `calendarlink connects a phone number to a Google Calendar account and
exposes a small HTTP API for listing, editing and deleting events and
reminders on that calendar.

It can run as:
  - An HTTP service for the conversational assistant (serve)
  - An MCP (Model Context Protocol) server on stdio (mcp)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calendarlink version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newStateCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
