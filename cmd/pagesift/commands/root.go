// Package commands implements the CLI commands for pagesift.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagesift/pagesift/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "pagesift",
	Short: "Adaptive structured-content extraction from web pages",
	Long: `Pagesift turns any URL into a structured document: page metadata plus
labeled content sections with text, links, images, lists and tables.

It picks the cheapest acquisition strategy that works: a plain HTTP
fetch when the markup is complete, static pagination when a next link
exists, and a headless browser (with reveal clicks and infinite scroll)
when the page is rendered client-side.

Examples:
  # Scrape one page to stdout
  pagesift scrape -u "https://example.com/page"

  # Follow pagination and emit YAML
  pagesift scrape -u "https://news.ycombinator.com" --max-pages 3 --format yaml

  # Force the rendered-browser path
  pagesift scrape -u "https://example.com/app" --force-render

  # Run the HTTP service
  pagesift serve --addr :8080`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.pagesift.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only log errors")
	rootCmd.PersistentFlags().Bool("log-json", false, "log in JSON format")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Full())
		},
	})
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".pagesift")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("PAGESIFT")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
