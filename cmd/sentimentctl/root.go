package main

import (
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ineyio/sentimentgate/client"
)

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var (
	serverURL string
	secretKey string
	timeout   time.Duration
	noColor   bool
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

var rootCmd = &cobra.Command{
	Use:   "sentimentctl",
	Short: "Upload videos to a sentimentgate server and print their sentiment",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.New(serverURL, secretKey)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", getEnvOrDefault("SENTIMENTGATE_URL", "http://localhost:8080"), "sentimentgate server URL")
	rootCmd.PersistentFlags().StringVar(&secretKey, "key", os.Getenv("SENTIMENTGATE_KEY"), "account secret key (default $SENTIMENTGATE_KEY)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall timeout for one command")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}
