package cli

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "seospider",
	Short: "A site-auditing SEO crawler",
	Long:  `SEO Spider - crawls a site, extracts on-page SEO fields and reports issues, link structure and performance`,
}

func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "seospider",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(serveCmd)
}
