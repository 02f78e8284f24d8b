package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/internal/output"
	"github.com/pagesift/pagesift/internal/scraper"
	"github.com/pagesift/pagesift/pkg/document"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape one or more URLs into structured documents",
	Long: `Scrape fetches each URL, picks an acquisition strategy and writes the
resulting document(s) to stdout or a file.

Examples:
  # Single page
  pagesift scrape -u "https://example.com/page"

  # Several pages as JSONL
  pagesift scrape -u "https://a.example" -u "https://b.example" --format jsonl

  # Write YAML to a file with tighter limits
  pagesift scrape -u "https://example.com" --format yaml -o out.yaml \
      --max-pages 2 --max-scrolls 3`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()

	flags.StringSliceP("url", "u", nil, "URL(s) to scrape (can be repeated)")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	// Pipeline settings
	flags.Duration("timeout", 30*time.Second, "fetch and navigation timeout")
	flags.Int("max-pages", 3, "max pages per acquisition")
	flags.Int("max-scrolls", 5, "max infinite-scroll attempts")
	flags.Int("max-clicks", 8, "max reveal clicks per page")
	flags.Int("raw-html-limit", 2000, "max raw HTML characters kept per section")
	flags.String("user-agent", "", "override the HTTP and browser user agent")
	flags.Bool("force-render", false, "always use the headless browser")

	_ = viper.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("max_pages", flags.Lookup("max-pages"))
	_ = viper.BindPFlag("max_scrolls", flags.Lookup("max-scrolls"))
	_ = viper.BindPFlag("max_clicks", flags.Lookup("max-clicks"))
	_ = viper.BindPFlag("raw_html_limit", flags.Lookup("raw-html-limit"))
	_ = viper.BindPFlag("user_agent", flags.Lookup("user-agent"))
	_ = viper.BindPFlag("force_render", flags.Lookup("force-render"))
}

func runScrape(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	urls, _ := cmd.Flags().GetStringSlice("url")
	if len(urls) == 0 {
		return cmd.Help()
	}

	s := scraper.New(scraperConfig())

	// Output destination
	outFile := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path) //#nosec G304 -- CLI tool writes to user-specified file
		if err != nil {
			logger.Error("failed to create output file", "path", path, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		logger.Error("invalid output format", "format", formatStr)
		return err
	}
	writer, err := output.NewWriter(outFile, format)
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close() }()

	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}
		doc := s.Scrape(ctx, url)
		if doc.Meta.Strategy == document.StrategyError {
			logger.Warn("scrape degraded to error document", "url", url)
		}
		if err := writer.Write(doc); err != nil {
			logger.Error("failed to write document", "url", url, "error", err)
			return err
		}
	}
	return ctx.Err()
}

func scraperConfig() scraper.Config {
	return scraper.Config{
		Timeout:      viper.GetDuration("timeout"),
		MaxPages:     viper.GetInt("max_pages"),
		MaxScrolls:   viper.GetInt("max_scrolls"),
		MaxClicks:    viper.GetInt("max_clicks"),
		RawHTMLLimit: viper.GetInt("raw_html_limit"),
		UserAgent:    viper.GetString("user_agent"),
		ForceRender:  viper.GetBool("force_render"),
	}
}
