package metrics

import (
	"time"
)

// Filter specifies query filters.
type Filter struct {
	Stage    string
	Provider string
	Model    string
	After    time.Time
	Before   time.Time
	Success  *bool // nil = any, true = success only, false = errors only
}

func (f Filter) match(m Metric) bool {
	if f.Stage != "" && m.Stage != f.Stage {
		return false
	}
	if f.Provider != "" && m.Provider != f.Provider {
		return false
	}
	if f.Model != "" && m.Model != f.Model {
		return false
	}
	if !f.After.IsZero() && !m.CreatedAt.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !m.CreatedAt.Before(f.Before) {
		return false
	}
	if f.Success != nil && m.Success != *f.Success {
		return false
	}
	return true
}

// List returns metrics matching the filter, newest first. limit <= 0
// returns all matches.
func (r *Recorder) List(f Filter, limit int) []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Metric
	for i := len(r.metrics) - 1; i >= 0; i-- {
		if !f.match(r.metrics[i]) {
			continue
		}
		out = append(out, r.metrics[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// TotalTokens returns the total tokens for metrics matching the filter.
func (r *Recorder) TotalTokens(f Filter) int {
	var total int
	for _, m := range r.List(f, 0) {
		total += m.TotalTokens
	}
	return total
}

// TotalTime returns the total call time for metrics matching the filter.
func (r *Recorder) TotalTime(f Filter) time.Duration {
	var total float64
	for _, m := range r.List(f, 0) {
		total += m.TotalSeconds
	}
	return time.Duration(total * float64(time.Second))
}
