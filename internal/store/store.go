// Package store persists extraction requests and results to Supabase.
// All writes are best-effort: failures are logged, never propagated.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/quote-parser/internal/model"
	"github.com/sells-group/quote-parser/pkg/supabase"
)

// RequestMeta describes the inputs of one extraction request.
type RequestMeta struct {
	EmailContent     string
	EmailFileName    string
	EmailFileSize    int
	ProposalFileName string
	ProposalFileSize int
	ProposalURL      string
	URLsFound        []string
	SourcesUsed      []string
	FirecrawlScraped bool
}

// Store writes extraction data to the Supabase tables. When disabled (no
// credentials configured), every method is a no-op returning a neutral
// value.
type Store struct {
	db      supabase.Client
	enabled bool
}

// New creates a Store backed by db. Pass nil to create a disabled store.
func New(db supabase.Client) *Store {
	return &Store{db: db, enabled: db != nil}
}

// Enabled reports whether persistence is configured.
func (s *Store) Enabled() bool { return s.enabled }

// SaveExtraction persists the request row and, if that insert succeeds, the
// quote data, property, and concession child rows. Errors are logged and
// swallowed.
func (s *Store) SaveExtraction(ctx context.Context, meta RequestMeta, merged *model.QuoteRecord) {
	if !s.enabled {
		return
	}

	requestID := s.insertRequest(ctx, meta)
	if requestID == "" {
		// Child rows link to the request row; nothing to do without it.
		return
	}

	s.insertQuoteData(ctx, requestID, merged)
	if len(merged.Property) > 0 {
		s.insertProperty(ctx, requestID, merged.Property)
	}
	if len(merged.Concessions) > 0 {
		s.insertConcessions(ctx, requestID, merged.Concessions)
	}

	zap.L().Info("stored extraction", zap.String("request_id", requestID))
}

// RecentRequests returns the most recent request rows, newest first.
func (s *Store) RecentRequests(ctx context.Context, limit int) ([]map[string]any, error) {
	if !s.enabled {
		return []map[string]any{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var rows []map[string]any
	query := fmt.Sprintf("select=*&order=created_at.desc&limit=%d", limit)
	if err := s.db.Select(ctx, "hotel_quote_requests", query, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

func (s *Store) insertRequest(ctx context.Context, meta RequestMeta) string {
	row := map[string]any{
		"email_content":      nullableStr(meta.EmailContent),
		"email_file_name":    nullableStr(meta.EmailFileName),
		"email_file_size":    nullableInt(meta.EmailFileSize),
		"proposal_file_name": nullableStr(meta.ProposalFileName),
		"proposal_file_size": nullableInt(meta.ProposalFileSize),
		"proposal_url":       nullableStr(meta.ProposalURL),
		"urls_found":         orEmpty(meta.URLsFound),
		"sources_used":       orEmpty(meta.SourcesUsed),
		"content_length":     len(meta.EmailContent),
		"firecrawl_scraped":  meta.FirecrawlScraped,
		"processing_status":  "completed",
	}

	var inserted []struct {
		ID string `json:"id"`
	}
	if err := s.db.Insert(ctx, "hotel_quote_requests", row, &inserted); err != nil {
		zap.L().Error("store request row", zap.Error(err))
		return ""
	}
	if len(inserted) == 0 {
		zap.L().Error("store request row: empty representation")
		return ""
	}
	return inserted[0].ID
}

func (s *Store) insertQuoteData(ctx context.Context, requestID string, rec *model.QuoteRecord) {
	row := map[string]any{
		"request_id": requestID,
	}
	for _, kind := range model.TotalKinds {
		entry := rec.Total(kind)
		if entry == nil {
			entry = &model.TotalEntry{Status: model.StatusNotFound}
		}
		row[kind+"_status"] = entry.Status
		row[kind+"_value"] = entryValue(entry)
		row[kind+"_currency"] = currencyOrDefault(entry)
		row[kind+"_provenance"] = nullableStr(entry.Provenance)
		row[kind+"_notes"] = nullableStr(entry.Notes)
	}

	extras := rec.Extras
	for _, key := range []string{
		"room_nights", "nightly_rate", "tax_rate_pct", "service_rate_pct",
		"fnb_minimum", "proposal_url", "guestroom_base",
		"guestroom_taxes_fees", "estimated_fnb_gross",
	} {
		row[key] = extras[key]
	}
	offsets, _ := json.Marshal(extras["effective_value_offsets"])
	row["effective_value_offsets"] = string(offsets)

	if err := s.db.Insert(ctx, "hotel_quote_data", row, nil); err != nil {
		zap.L().Error("store quote data", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *Store) insertProperty(ctx context.Context, requestID string, property map[string]any) {
	blob, _ := json.Marshal(property)
	row := map[string]any{
		"request_id":    requestID,
		"name":          property["name"],
		"address":       property["address"],
		"phone":         property["phone"],
		"website":       property["website"],
		"contact_name":  property["contact_name"],
		"contact_email": property["contact_email"],
		"contact_phone": property["contact_phone"],
		"property_data": string(blob),
	}

	if err := s.db.Insert(ctx, "hotel_properties", row, nil); err != nil {
		zap.L().Error("store property", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *Store) insertConcessions(ctx context.Context, requestID string, concessions []any) {
	rows := make([]map[string]any, 0, len(concessions))
	for _, c := range concessions {
		item, _ := c.(map[string]any)
		rows = append(rows, map[string]any{
			"request_id":      requestID,
			"concession_text": item["text"],
			"concession_type": item["type"],
			"value_impact":    item["value_impact"],
			"conditions":      item["conditions"],
		})
	}

	if err := s.db.Insert(ctx, "hotel_concessions", rows, nil); err != nil {
		zap.L().Error("store concessions", zap.String("request_id", requestID), zap.Error(err))
	}
}

// entryValue prefers the explicit value field and falls back to amount.
func entryValue(e *model.TotalEntry) *float64 {
	if e.Value != nil {
		return e.Value
	}
	return e.Amount
}

func currencyOrDefault(e *model.TotalEntry) string {
	if e.Currency != "" {
		return e.Currency
	}
	return "USD"
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
