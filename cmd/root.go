package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "complyscan",
	Short: "AI-powered compliance scanner with cost governance",
	Long: `complyscan analyzes infrastructure-as-code and application files for
security and compliance violations by combining knowledge-base retrieval,
AI analysis, and vulnerability-feed correlation under a strict cost budget,
with optional conservative auto-remediation.`,
}

var DebugMode bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
}
