package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/internal/scraper"
	"github.com/pagesift/pagesift/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scrape pipeline as an HTTP service",
	Long: `Serve exposes the pipeline over HTTP:

  GET  /healthz  liveness probe
  POST /scrape   {"url": "https://..."} -> {"result": <document>}

Degraded scrapes still return 200; inspect meta.strategy and errors in
the document. The server shuts down gracefully on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.Duration("timeout", 30*time.Second, "fetch and navigation timeout")
	flags.Int("max-pages", 3, "max pages per acquisition")
	flags.Int("max-scrolls", 5, "max infinite-scroll attempts")
	flags.Int("max-clicks", 8, "max reveal clicks per page")
	flags.Int("raw-html-limit", 2000, "max raw HTML characters kept per section")
	flags.String("user-agent", "", "override the HTTP and browser user agent")

	_ = viper.BindPFlag("addr", flags.Lookup("addr"))
	_ = viper.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("max_pages", flags.Lookup("max-pages"))
	_ = viper.BindPFlag("max_scrolls", flags.Lookup("max-scrolls"))
	_ = viper.BindPFlag("max_clicks", flags.Lookup("max-clicks"))
	_ = viper.BindPFlag("raw_html_limit", flags.Lookup("raw-html-limit"))
	_ = viper.BindPFlag("user_agent", flags.Lookup("user-agent"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(scraper.New(scraperConfig()))

	err := srv.ListenAndServe(ctx, viper.GetString("addr"))
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		return err
	}
	return nil
}
