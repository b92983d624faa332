package types

// QuoteState is the tri-state lifecycle of a displayed quote.
type QuoteState string

const (
	// QuoteEmpty means no quote was requested (no amount, or amount not positive).
	QuoteEmpty QuoteState = "empty"
	// QuotePending means a quote request is in flight; the UI shows a loading
	// indicator instead of a stale number.
	QuotePending QuoteState = "pending"
	// QuoteReady means OutputAmount holds a displayable value.
	QuoteReady QuoteState = "ready"
	// QuoteFailed means an underlying read failed; Err carries the cause.
	QuoteFailed QuoteState = "failed"
)

// Quote is the derived, never-persisted result of quoting the current draft
// against the current pair snapshot.
type Quote struct {
	State              QuoteState `json:"state"`
	OutputAmount       string     `json:"output_amount,omitempty"` // decimal string, destination token precision
	PriceImpactPercent *float64   `json:"price_impact_percent,omitempty"`
	Err                error      `json:"-"`
}
