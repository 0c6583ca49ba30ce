package quote

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-parser/pkg/firecrawl"
)

type fakeScraper struct {
	resp *firecrawl.ScrapeResponse
	err  error
	got  firecrawl.ScrapeRequest
}

func (f *fakeScraper) Scrape(_ context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{resp: &firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{Markdown: "# Proposal\nTotal: $5,000"},
	}}
	llm := &fakeLLM{responses: []string{`{"property":{"name":"Scraped Hotel"}}`}}
	f := NewFetcher(scraper, fastRetry(NewProcessor(llm, "")))

	record, err := f.Fetch(context.Background(), "https://h.com/proposal/1")
	require.NoError(t, err)

	assert.Equal(t, "https://h.com/proposal/1", scraper.got.URL)
	assert.Equal(t, []string{"markdown"}, scraper.got.Formats)
	assert.True(t, scraper.got.OnlyMainContent)
	assert.Equal(t, 60000, scraper.got.Timeout)

	assert.Equal(t, "proposal", record.Source)
	assert.Equal(t, "Scraped Hotel", record.Property["name"])
	assert.Equal(t, "https://h.com/proposal/1", record.Extras["proposal_url"])

	// The markdown is what gets processed.
	require.Len(t, llm.requests, 1)
	assert.Contains(t, llm.requests[0].Messages[1].Content, "Total: $5,000")
}

func TestFetcher_ScrapeError(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{err: eris.New("timeout")}
	f := NewFetcher(scraper, fastRetry(NewProcessor(&fakeLLM{}, "")))

	_, err := f.Fetch(context.Background(), "https://h.com/proposal/1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape https://h.com/proposal/1")
}

func TestFetcher_EmptyMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *firecrawl.ScrapeResponse
	}{
		{
			name: "unsuccessful scrape",
			resp: &firecrawl.ScrapeResponse{Success: false},
		},
		{
			name: "empty markdown",
			resp: &firecrawl.ScrapeResponse{Success: true, Data: firecrawl.PageData{Markdown: ""}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := NewFetcher(&fakeScraper{resp: tt.resp}, fastRetry(NewProcessor(&fakeLLM{}, "")))
			_, err := f.Fetch(context.Background(), "https://h.com/quote/2")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "returned no markdown")
		})
	}
}
