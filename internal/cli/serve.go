package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/seospider/seospider/internal/api"
	"github.com/seospider/seospider/internal/crawler"
	"github.com/seospider/seospider/internal/pagespeed"
)

var (
	listenAddr   string
	servePSIKey  string
	serveTimeout int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control API",
	Long:  `Serve the crawl control API: start, stop, pause, resume and status over HTTP`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		ctl := crawler.New(logger)
		ctl.SetAuditor(pagespeed.New(servePSIKey, logger))
		server := api.NewServer(ctl, logger)

		httpServer := &http.Server{
			Addr:              listenAddr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      time.Duration(serveTimeout) * time.Second,
		}
		logger.Info("API listening", "addr", listenAddr)
		return httpServer.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&servePSIKey, "pagespeed-key", "", "PageSpeed Insights API key")
	serveCmd.Flags().IntVar(&serveTimeout, "write-timeout", 60, "HTTP write timeout in seconds")
}
