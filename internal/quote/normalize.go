package quote

import (
	"strconv"

	"github.com/sells-group/quote-parser/internal/model"
)

// FromMap converts the LLM's loosely-typed JSON object into a QuoteRecord.
// Unknown top-level keys are dropped; values inside the open mappings are
// kept as-is. The result still needs Normalize to satisfy the schema
// invariants.
func FromMap(m map[string]any) *model.QuoteRecord {
	r := &model.QuoteRecord{
		Property:    asMap(m["property"]),
		Program:     asMap(m["program"]),
		Fees:        asMap(m["fees"]),
		Agenda:      asSlice(m["agenda"]),
		Policies:    asMap(m["policies"]),
		Concessions: asSlice(m["concessions"]),
		Notes:       m["notes"],
		Extras:      asMap(m["extras"]),
	}

	if totals := asMap(m["totals"]); totals != nil {
		r.Totals = make(map[string]*model.TotalEntry, len(totals))
		for kind, raw := range totals {
			r.Totals[kind] = totalEntryFromMap(asMap(raw))
		}
	}

	return r
}

// Normalize pins the closed schema onto a record: all four total kinds
// present, all recognized extras keys present, USD default on monetary
// entries, concessions never nil. Idempotent.
func Normalize(r *model.QuoteRecord) *model.QuoteRecord {
	if r.Property == nil {
		r.Property = map[string]any{}
	}
	if r.Program == nil {
		r.Program = map[string]any{}
	}
	if r.Fees == nil {
		r.Fees = map[string]any{}
	}
	if r.Agenda == nil {
		r.Agenda = []any{}
	}
	if r.Policies == nil {
		r.Policies = map[string]any{}
	}
	if r.Concessions == nil {
		r.Concessions = []any{}
	}

	if r.Totals == nil {
		r.Totals = make(map[string]*model.TotalEntry, len(model.TotalKinds))
	}
	for _, kind := range model.TotalKinds {
		entry := r.Totals[kind]
		if entry == nil {
			r.Totals[kind] = &model.TotalEntry{Status: model.StatusNotFound}
			continue
		}
		if entry.Status == "" {
			entry.Status = model.StatusNotFound
		}
		if (entry.Value != nil || entry.Amount != nil) && entry.Currency == "" {
			entry.Currency = "USD"
		}
	}

	if r.Extras == nil {
		r.Extras = make(map[string]any, len(model.ExtrasKeys))
	}
	for _, key := range model.ExtrasKeys {
		if _, ok := r.Extras[key]; !ok {
			r.Extras[key] = nil
		}
	}
	if r.Extras["effective_value_offsets"] == nil {
		r.Extras["effective_value_offsets"] = []any{}
	}

	return r
}

func totalEntryFromMap(m map[string]any) *model.TotalEntry {
	if m == nil {
		return &model.TotalEntry{Status: model.StatusNotFound}
	}
	e := &model.TotalEntry{
		Status:     asString(m["status"]),
		Value:      toFloat64(m["value"]),
		Amount:     toFloat64(m["amount"]),
		Currency:   asString(m["currency"]),
		Provenance: asString(m["provenance_snippet"]),
		Notes:      asString(m["notes"]),
	}
	return e
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// toFloat64 coerces the numeric shapes encoding/json and the LLM produce.
// Returns nil for anything non-numeric.
func toFloat64(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return &f
		}
	}
	return nil
}
