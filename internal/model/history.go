package model

import (
	"sort"
	"time"
)

type HistoryEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // irrigation/refill/...
	Target    string    `json:"target,omitempty"`
	AmountL   float64   `json:"amount_l"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// HistoryFilter narrows a history listing. Zero fields are ignored;
// Start/End bounds are inclusive on both ends.
type HistoryFilter struct {
	Type  string
	Start time.Time
	End   time.Time
}

func (f HistoryFilter) matches(e HistoryEvent) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	return true
}

// FilterHistory applies the filter conjunction and returns the survivors
// sorted by timestamp descending, regardless of input order.
func FilterHistory(events []HistoryEvent, f HistoryFilter) []HistoryEvent {
	out := make([]HistoryEvent, 0, len(events))
	for _, e := range events {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
