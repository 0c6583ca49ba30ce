package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quote-parser/internal/extract"
	"github.com/sells-group/quote-parser/internal/pipeline"
	"github.com/sells-group/quote-parser/internal/quote"
	"github.com/sells-group/quote-parser/internal/server"
	"github.com/sells-group/quote-parser/internal/store"
	"github.com/sells-group/quote-parser/pkg/firecrawl"
	"github.com/sells-group/quote-parser/pkg/openai"
	"github.com/sells-group/quote-parser/pkg/supabase"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quote extraction HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.OpenAI.APIKey == "" {
			return eris.New("OPENAI_API_KEY not set")
		}

		llm := openai.NewClient(cfg.OpenAI.APIKey,
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
			openai.WithModel(cfg.OpenAI.Model),
		)
		proc := quote.NewProcessor(llm, cfg.Extract.PromptPath)

		var fetcher pipeline.URLFetcher
		if cfg.Firecrawl.APIKey != "" {
			scraper := firecrawl.NewClient(cfg.Firecrawl.APIKey,
				firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL),
			)
			fetcher = quote.NewFetcher(scraper, proc)
		} else {
			zap.L().Warn("FIRECRAWL_API_KEY not set, URL scraping disabled")
		}

		var st *store.Store
		if cfg.Supabase.URL != "" && cfg.Supabase.AnonKey != "" {
			st = store.New(supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey))
		} else {
			st = store.New(nil)
			zap.L().Warn("Supabase credentials not set, persistence disabled")
		}

		extractor := extract.NewLocal(cfg.Extract.PdfToTextPath, cfg.Extract.MaxChars)
		pipe := pipeline.New(proc, fetcher, extractor, st)
		handler := server.New(pipe, proc, st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
