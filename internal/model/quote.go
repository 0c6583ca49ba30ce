// Package model defines the normalized quote record produced by the
// extraction pipeline.
package model

// Total kinds recognized in a quote record's totals map.
const (
	TotalQuote       = "total_quote"
	GuestroomTotal   = "guestroom_total"
	MeetingRoomTotal = "meeting_room_total"
	FnbTotal         = "fnb_total"
)

// TotalKinds lists the four recognized total kinds in canonical order.
var TotalKinds = []string{TotalQuote, GuestroomTotal, MeetingRoomTotal, FnbTotal}

// TotalEntry statuses assigned by the LLM.
const (
	StatusExplicit    = "explicit"
	StatusDerived     = "derived"
	StatusConditional = "conditional"
	StatusNotFound    = "not_found"
)

// ExtrasKeys lists the recognized keys of the extras bag. Every key is
// present after normalization, possibly null (empty slice for
// effective_value_offsets).
var ExtrasKeys = []string{
	"room_nights",
	"nightly_rate",
	"tax_rate_pct",
	"service_rate_pct",
	"fnb_minimum",
	"proposal_url",
	"guestroom_base",
	"guestroom_taxes_fees",
	"estimated_fnb_gross",
	"effective_value_offsets",
}

// TotalEntry is one monetary total extracted from a quote source. Amount and
// Value are pointers so that a literal zero stays distinguishable from
// absent; the merger's fixups trigger on zero only.
type TotalEntry struct {
	Status     string   `json:"status"`
	Value      *float64 `json:"value"`
	Amount     *float64 `json:"amount,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	Provenance string   `json:"provenance_snippet,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// QuoteRecord is the fixed-shape output of a single-source extraction.
// Property, Program, Fees and Policies stay open mappings because the LLM's
// field set inside them varies by source; the closed parts of the schema are
// Totals and the recognized Extras keys.
type QuoteRecord struct {
	Property    map[string]any         `json:"property"`
	Program     map[string]any         `json:"program"`
	Fees        map[string]any         `json:"fees"`
	Agenda      []any                  `json:"agenda"`
	Policies    map[string]any         `json:"policies"`
	Concessions []any                  `json:"concessions"`
	Notes       any                    `json:"notes"`
	Totals      map[string]*TotalEntry `json:"totals"`
	Extras      map[string]any         `json:"extras"`

	// Sources is set by the merger: the labels that contributed.
	Sources []string `json:"sources,omitempty"`

	// Source metadata attached by the processor and orchestrator.
	Source        string `json:"source,omitempty"`
	ContentLength int    `json:"content_length,omitempty"`
	Filename      string `json:"filename,omitempty"`
	FileSize      int    `json:"file_size,omitempty"`

	// Raw and Error carry the degraded form returned when the LLM response
	// cannot be parsed as JSON.
	Raw   string `json:"raw,omitempty"`
	Error string `json:"error,omitempty"`
}

// Degraded reports whether the record is the unparseable-response escape
// hatch rather than a normalized extraction.
func (r *QuoteRecord) Degraded() bool {
	return r.Error != ""
}

// Total returns the entry for the given kind, or nil.
func (r *QuoteRecord) Total(kind string) *TotalEntry {
	if r.Totals == nil {
		return nil
	}
	return r.Totals[kind]
}

// Clone returns a deep copy of the record's mutable parts. The merger works
// on a clone so that fixups never alias the per-source inputs.
func (r *QuoteRecord) Clone() *QuoteRecord {
	out := *r

	if r.Totals != nil {
		out.Totals = make(map[string]*TotalEntry, len(r.Totals))
		for k, v := range r.Totals {
			if v == nil {
				out.Totals[k] = nil
				continue
			}
			entry := *v
			if v.Value != nil {
				val := *v.Value
				entry.Value = &val
			}
			if v.Amount != nil {
				amt := *v.Amount
				entry.Amount = &amt
			}
			out.Totals[k] = &entry
		}
	}

	if r.Extras != nil {
		out.Extras = make(map[string]any, len(r.Extras))
		for k, v := range r.Extras {
			out.Extras[k] = v
		}
	}

	if r.Concessions != nil {
		out.Concessions = append([]any(nil), r.Concessions...)
	}
	if r.Sources != nil {
		out.Sources = append([]string(nil), r.Sources...)
	}

	return &out
}

// Float64 is a convenience for building *float64 literals.
func Float64(v float64) *float64 { return &v }
