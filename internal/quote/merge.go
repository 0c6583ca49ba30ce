package quote

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-parser/internal/model"
)

// Merge combines per-source extractions into a single record. The proposal
// record is authoritative for financials; email fills gaps. Fixup rules
// derive zeroed totals from extras arithmetic. Statuses are never changed by
// fixups, and fixups trigger on a literal zero amount only, never on null.
func Merge(extracted map[string]*model.QuoteRecord) (*model.QuoteRecord, error) {
	proposal, hasProposal := extracted[LabelProposal]
	email, hasEmail := extracted[LabelEmail]

	switch {
	case hasProposal && hasEmail:
		return mergeBoth(proposal, email), nil
	case hasProposal:
		merged := proposal.Clone()
		merged.Sources = []string{LabelProposal}
		return merged, nil
	case hasEmail:
		merged := email.Clone()
		merged.Sources = []string{LabelEmail}
		return merged, nil
	default:
		return nil, eris.New("quote: no valid data to merge")
	}
}

func mergeBoth(proposal, email *model.QuoteRecord) *model.QuoteRecord {
	merged := proposal.Clone()

	fixGuestroomTotal(merged)
	fixFnbTotal(merged)
	fixTotalQuote(merged)

	// Gap fill from email.
	if len(merged.Property) == 0 && len(email.Property) > 0 {
		merged.Property = email.Property
	}
	if len(merged.Program) == 0 && len(email.Program) > 0 {
		merged.Program = email.Program
	}

	merged.Concessions = unionConcessions(merged.Concessions, email.Concessions)
	merged.Sources = []string{LabelProposal, LabelEmail}

	return merged
}

// fixGuestroomTotal fills a zero guestroom total from the base plus taxes
// and fees carried in extras.
func fixGuestroomTotal(r *model.QuoteRecord) {
	entry := r.Total(model.GuestroomTotal)
	if entry == nil || !isZero(entry.Amount) {
		return
	}
	base := extraFloat(r.Extras, "guestroom_base")
	if base == nil {
		return
	}
	taxes := 0.0
	if t := extraFloat(r.Extras, "guestroom_taxes_fees"); t != nil {
		taxes = *t
	}
	entry.Amount = model.Float64(*base + taxes)
	zap.L().Info("fixed guestroom total", zap.Float64("amount", *entry.Amount))
}

// fixFnbTotal fills a zero F&B total, preferring a pre-computed gross from
// extras and otherwise deriving it from the minimum and rates.
func fixFnbTotal(r *model.QuoteRecord) {
	entry := r.Total(model.FnbTotal)
	if entry == nil || !isZero(entry.Amount) {
		return
	}

	if gross := extraFloat(r.Extras, "estimated_fnb_gross"); gross != nil {
		entry.Amount = model.Float64(*gross)
		zap.L().Info("fixed F&B total from estimated gross", zap.Float64("amount", *entry.Amount))
		return
	}

	minimum := extraFloat(r.Extras, "fnb_minimum")
	if minimum == nil {
		return
	}
	serviceRate := 0.0
	if v := extraFloat(r.Extras, "service_rate_pct"); v != nil {
		serviceRate = *v
	}
	taxRate := 0.0
	if v := extraFloat(r.Extras, "tax_rate_pct"); v != nil {
		taxRate = *v
	}
	if serviceRate <= 0 && taxRate <= 0 {
		return
	}

	serviceCharge := *minimum * serviceRate / 100
	taxOnService := 0.0
	if serviceRate > 0 {
		taxOnService = serviceCharge * taxRate / 100
	}
	taxOnFnb := *minimum * taxRate / 100
	gross := *minimum + serviceCharge + taxOnService + taxOnFnb

	entry.Amount = model.Float64(gross)
	r.Extras["estimated_fnb_gross"] = gross
	zap.L().Info("derived F&B total", zap.Float64("amount", gross))
}

// fixTotalQuote fills a zero total quote with the sum of the component
// totals; missing component amounts count as zero.
func fixTotalQuote(r *model.QuoteRecord) {
	entry := r.Total(model.TotalQuote)
	if entry == nil || !isZero(entry.Amount) {
		return
	}
	sum := amountOrZero(r.Total(model.GuestroomTotal)) +
		amountOrZero(r.Total(model.MeetingRoomTotal)) +
		amountOrZero(r.Total(model.FnbTotal))
	entry.Amount = model.Float64(sum)
	zap.L().Info("calculated total quote", zap.Float64("amount", sum))
}

// unionConcessions merges two concession lists, dropping structural
// duplicates. Equality is the canonical JSON encoding of each item
// (encoding/json emits map keys sorted, so key order in the source cannot
// create spurious duplicates).
func unionConcessions(a, b []any) []any {
	out := []any{}
	seen := make(map[string]struct{})
	for _, item := range append(append([]any{}, a...), b...) {
		key := canonicalJSON(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func canonicalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func isZero(v *float64) bool {
	return v != nil && *v == 0
}

func amountOrZero(e *model.TotalEntry) float64 {
	if e == nil || e.Amount == nil {
		return 0
	}
	return *e.Amount
}

func extraFloat(extras map[string]any, key string) *float64 {
	if extras == nil {
		return nil
	}
	return toFloat64(extras[key])
}
