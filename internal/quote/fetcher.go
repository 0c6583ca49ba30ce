package quote

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-parser/internal/model"
	"github.com/sells-group/quote-parser/pkg/firecrawl"
)

const (
	// scrapeTimeoutMS is the server-side scrape budget sent to Firecrawl.
	scrapeTimeoutMS = 60000
	// fetchDeadline bounds the whole scrape call client-side.
	fetchDeadline = 70 * time.Second
)

// Fetcher scrapes a proposal URL into markdown and runs it through the
// source processor.
type Fetcher struct {
	scraper firecrawl.Client
	proc    *Processor
}

// NewFetcher creates a Fetcher.
func NewFetcher(scraper firecrawl.Client, proc *Processor) *Fetcher {
	return &Fetcher{scraper: scraper, proc: proc}
}

// Fetch scrapes url and extracts a quote record from the markdown. The
// record's extras.proposal_url is set to url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*model.QuoteRecord, error) {
	scrapeCtx, cancel := context.WithTimeout(ctx, fetchDeadline)
	defer cancel()

	resp, err := f.scraper.Scrape(scrapeCtx, firecrawl.ScrapeRequest{
		URL:             url,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		Timeout:         scrapeTimeoutMS,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "quote: scrape %s", url)
	}
	if !resp.Success || resp.Data.Markdown == "" {
		return nil, eris.Errorf("quote: scrape %s returned no markdown", url)
	}

	zap.L().Info("scraped proposal URL",
		zap.String("url", url),
		zap.Int("markdown_length", len(resp.Data.Markdown)),
	)

	record, err := f.proc.Process(ctx, resp.Data.Markdown, LabelProposal)
	if err != nil {
		return nil, err
	}
	if record.Extras == nil {
		record.Extras = map[string]any{}
	}
	record.Extras["proposal_url"] = url

	return record, nil
}
