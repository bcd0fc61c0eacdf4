package usage

import (
	"context"
	"sort"
	"time"

	"mercator-hq/conduit/pkg/providers"
)

// Status values for Record.Status.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Record is one completion or stream routed through the dispatcher.
type Record struct {
	// ID is assigned by the store when empty
	ID string `json:"id"`

	// Timestamp is when the call finished; the store sets it when zero
	Timestamp time.Time `json:"timestamp"`

	Provider providers.Kind `json:"provider"`
	Model    string         `json:"model"`
	Stream   bool           `json:"stream"`

	// Status is "success" or "error"
	Status string `json:"status"`

	// ErrorType is the metrics error label of a failed call
	ErrorType string `json:"error_type,omitempty"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// CostUSD is nil when the catalog has no pricing for the model
	CostUSD *float64 `json:"cost_usd,omitempty"`

	LatencyMs    int64  `json:"latency_ms"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Totals aggregates a set of records.
type Totals struct {
	Requests         int     `json:"requests"`
	Errors           int     `json:"errors"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`

	// Unpriced counts records whose cost was unavailable
	Unpriced int `json:"unpriced"`
}

// ModelTotals aggregates the records of one provider/model pair.
type ModelTotals struct {
	Provider providers.Kind `json:"provider"`
	Model    string         `json:"model"`
	Totals
}

// Summary aggregates every record at or after Since.
type Summary struct {
	Since time.Time `json:"since"`
	Totals

	// ByModel is sorted by provider, then model
	ByModel []ModelTotals `json:"by_model"`
}

// Filter selects records for List. Zero fields match everything.
type Filter struct {
	Since    time.Time
	Until    time.Time
	Provider providers.Kind
	Model    string

	// Limit caps the result (0 = no limit); newest records come first
	Limit int
}

// Store persists usage records.
type Store interface {
	// Record stores rec, assigning ID and Timestamp when unset.
	Record(ctx context.Context, rec *Record) error

	// List returns matching records, newest first.
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// Summary aggregates records at or after since.
	Summary(ctx context.Context, since time.Time) (*Summary, error)

	// Cleanup deletes records older than olderThan and returns how many were removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases the store's resources.
	Close() error
}

func (t *Totals) add(rec *Record) {
	t.Requests++
	if rec.Status == StatusError {
		t.Errors++
	}
	t.PromptTokens += rec.PromptTokens
	t.CompletionTokens += rec.CompletionTokens
	t.TotalTokens += rec.TotalTokens
	if rec.CostUSD != nil {
		t.CostUSD += *rec.CostUSD
	} else {
		t.Unpriced++
	}
}

// summarize aggregates records at or after since.
func summarize(records []*Record, since time.Time) *Summary {
	summary := &Summary{Since: since}
	byModel := make(map[string]*ModelTotals)

	for _, rec := range records {
		if rec.Timestamp.Before(since) {
			continue
		}
		summary.add(rec)

		key := string(rec.Provider) + "\x00" + rec.Model
		mt, ok := byModel[key]
		if !ok {
			mt = &ModelTotals{Provider: rec.Provider, Model: rec.Model}
			byModel[key] = mt
		}
		mt.add(rec)
	}

	summary.ByModel = make([]ModelTotals, 0, len(byModel))
	for _, mt := range byModel {
		summary.ByModel = append(summary.ByModel, *mt)
	}
	sortModelTotals(summary.ByModel)
	return summary
}

func sortModelTotals(totals []ModelTotals) {
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Provider != totals[j].Provider {
			return totals[i].Provider < totals[j].Provider
		}
		return totals[i].Model < totals[j].Model
	})
}

func (f Filter) matches(rec *Record) bool {
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !rec.Timestamp.Before(f.Until) {
		return false
	}
	if f.Provider != "" && rec.Provider != f.Provider {
		return false
	}
	if f.Model != "" && rec.Model != f.Model {
		return false
	}
	return true
}
