// Package pipeline orchestrates the extraction-merge flow over the optional
// request inputs: email text, email file, proposal file, proposal URL.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-parser/internal/extract"
	"github.com/sells-group/quote-parser/internal/model"
	"github.com/sells-group/quote-parser/internal/quote"
	"github.com/sells-group/quote-parser/internal/store"
)

// ErrNoInput is returned when a request carries no usable input at all.
var ErrNoInput = eris.New("pipeline: no content provided for extraction")

// SourceProcessor extracts a quote record from a labeled text blob.
type SourceProcessor interface {
	Process(ctx context.Context, content, label string) (*model.QuoteRecord, error)
}

// URLFetcher scrapes a URL and extracts a quote record from it.
type URLFetcher interface {
	Fetch(ctx context.Context, url string) (*model.QuoteRecord, error)
}

// FileInput is an uploaded file held in memory. The bytes are retained so
// URL detection can re-read text content without a rewind.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// Request carries the up-to-four optional inputs of one extraction.
type Request struct {
	EmailContent string
	EmailFile    *FileInput
	ProposalFile *FileInput
	ProposalURL  string
}

func (r Request) empty() bool {
	return r.EmailContent == "" && r.EmailFile == nil && r.ProposalFile == nil && r.ProposalURL == ""
}

// Result is the merged outcome of one extraction request.
type Result struct {
	Data      *model.QuoteRecord
	Sources   []string
	URLsFound []string
}

// Pipeline drives text extraction, URL detection, per-source LLM
// processing, URL fetching, merging, and best-effort persistence. One
// request runs strictly sequentially; fixup ordering stays deterministic
// and external-API concurrency per request is bounded at one.
type Pipeline struct {
	proc      SourceProcessor
	fetcher   URLFetcher // nil disables URL scraping
	extractor extract.Extractor
	store     *store.Store
}

// New creates a Pipeline. fetcher may be nil when scraping is disabled.
func New(proc SourceProcessor, fetcher URLFetcher, extractor extract.Extractor, st *store.Store) *Pipeline {
	if st == nil {
		st = store.New(nil)
	}
	return &Pipeline{proc: proc, fetcher: fetcher, extractor: extractor, store: st}
}

// Run executes one extraction request. The sources list reflects processing
// order: email before proposal before proposal_url.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	sources := []string{}
	extracted := map[string]*model.QuoteRecord{}
	var urls []string

	if req.EmailContent != "" {
		sources = append(sources, "email")
		rec, err := p.proc.Process(ctx, req.EmailContent, quote.LabelEmail)
		if err != nil {
			return nil, err
		}
		extracted[quote.LabelEmail] = rec
		urls = append(urls, quote.DetectURLs(req.EmailContent)...)
	}

	if req.EmailFile != nil {
		sources = append(sources, "email_file")
		rec, err := p.processFile(ctx, req.EmailFile)
		if err != nil {
			return nil, err
		}
		extracted[quote.LabelEmail] = rec
		urls = append(urls, detectFileURLs(req.EmailFile)...)
	}

	if req.ProposalFile != nil {
		sources = append(sources, "proposal_file")
		rec, err := p.processFile(ctx, req.ProposalFile)
		if err != nil {
			return nil, err
		}
		extracted[quote.LabelProposal] = rec
		urls = append(urls, detectFileURLs(req.ProposalFile)...)
	}

	if req.ProposalURL != "" {
		sources = append(sources, "proposal_url")
		urls = append(urls, req.ProposalURL)
	}

	urls = dedupe(urls)

	// Fall back to a URL the LLM spotted when pattern detection found none.
	if len(urls) == 0 && len(extracted) > 0 {
		for _, key := range []string{quote.LabelEmail, quote.LabelProposal} {
			rec, ok := extracted[key]
			if !ok || rec.Extras == nil {
				continue
			}
			if u, _ := rec.Extras["proposal_url"].(string); u != "" {
				zap.L().Info("using AI-discovered proposal URL", zap.String("url", u))
				urls = append(urls, u)
				break
			}
		}
	}

	scraped := p.fetchFirst(ctx, urls, extracted, &sources)

	if len(extracted) == 0 {
		return nil, ErrNoInput
	}

	merged, err := quote.Merge(extracted)
	if err != nil {
		return nil, err
	}

	p.store.SaveExtraction(ctx, store.RequestMeta{
		EmailContent:     req.EmailContent,
		EmailFileName:    fileName(req.EmailFile),
		EmailFileSize:    fileSize(req.EmailFile),
		ProposalFileName: fileName(req.ProposalFile),
		ProposalFileSize: fileSize(req.ProposalFile),
		ProposalURL:      req.ProposalURL,
		URLsFound:        urls,
		SourcesUsed:      sources,
		FirecrawlScraped: scraped,
	}, merged)

	return &Result{Data: merged, Sources: sources, URLsFound: urls}, nil
}

// fetchFirst tries each URL in order and keeps the first successful fetch as
// the proposal source. Per-URL failures are logged and skipped.
func (p *Pipeline) fetchFirst(ctx context.Context, urls []string, extracted map[string]*model.QuoteRecord, sources *[]string) bool {
	if p.fetcher == nil {
		if len(urls) > 0 {
			zap.L().Warn("URL scraping disabled, skipping URLs", zap.Int("count", len(urls)))
		}
		return false
	}

	for _, u := range urls {
		rec, err := p.fetcher.Fetch(ctx, u)
		if err != nil {
			zap.L().Warn("failed to process URL", zap.String("url", u), zap.Error(err))
			continue
		}
		extracted[quote.LabelProposal] = rec
		if !contains(*sources, "proposal_url") {
			*sources = append(*sources, "proposal_url")
		}
		zap.L().Info("processed proposal URL", zap.String("url", u))
		return true
	}
	return false
}

func (p *Pipeline) processFile(ctx context.Context, f *FileInput) (*model.QuoteRecord, error) {
	text, err := p.extractor.Extract(ctx, f.Data, filepath.Ext(f.Name))
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: extract text from %s", f.Name)
	}

	rec, err := p.proc.Process(ctx, text, quote.LabelFile)
	if err != nil {
		return nil, err
	}
	rec.Filename = f.Name
	rec.FileSize = len(f.Data)
	return rec, nil
}

// detectFileURLs runs URL detection on the raw bytes of text-based uploads.
func detectFileURLs(f *FileInput) []string {
	if f.ContentType != "text/html" && f.ContentType != "text/plain" {
		return nil
	}
	return quote.DetectURLs(string(f.Data))
}

func dedupe(urls []string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func fileName(f *FileInput) string {
	if f == nil {
		return ""
	}
	return f.Name
}

func fileSize(f *FileInput) int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}
