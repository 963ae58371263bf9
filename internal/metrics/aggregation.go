package metrics

import (
	"sort"
)

// Summary provides a summary of metrics for a filter.
type Summary struct {
	Count          int     `json:"count" yaml:"count"`
	SuccessCount   int     `json:"success_count" yaml:"success_count"`
	ErrorCount     int     `json:"error_count" yaml:"error_count"`
	TotalTokens    int     `json:"total_tokens" yaml:"total_tokens"`
	AvgTokens      float64 `json:"avg_tokens" yaml:"avg_tokens"`
	AvgTimeSeconds float64 `json:"avg_time_seconds" yaml:"avg_time_seconds"`

	LatencyP50 float64 `json:"latency_p50" yaml:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95" yaml:"latency_p95"`
	LatencyMax float64 `json:"latency_max" yaml:"latency_max"`

	TotalPromptTokens     int `json:"total_prompt_tokens" yaml:"total_prompt_tokens"`
	TotalCompletionTokens int `json:"total_completion_tokens" yaml:"total_completion_tokens"`
}

// Report is the summary served by the metrics endpoint.
type Report struct {
	Overall    *Summary            `json:"overall" yaml:"overall"`
	ByStage    map[string]*Summary `json:"by_stage" yaml:"by_stage"`
	ByProvider map[string]*Summary `json:"by_provider" yaml:"by_provider"`
	Dropped    int64               `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// GetSummary returns a summary of metrics matching the filter.
func (r *Recorder) GetSummary(f Filter) *Summary {
	return summarize(r.List(f, 0))
}

// GetReport returns overall, per-stage and per-provider summaries.
func (r *Recorder) GetReport(f Filter) *Report {
	all := r.List(f, 0)

	byStage := make(map[string][]Metric)
	byProvider := make(map[string][]Metric)
	for _, m := range all {
		stage := m.Stage
		if stage == "" {
			stage = "unattributed"
		}
		byStage[stage] = append(byStage[stage], m)
		if m.Provider != "" {
			byProvider[m.Provider] = append(byProvider[m.Provider], m)
		}
	}

	report := &Report{
		Overall:    summarize(all),
		ByStage:    make(map[string]*Summary, len(byStage)),
		ByProvider: make(map[string]*Summary, len(byProvider)),
		Dropped:    r.Dropped(),
	}
	for stage, ms := range byStage {
		report.ByStage[stage] = summarize(ms)
	}
	for provider, ms := range byProvider {
		report.ByProvider[provider] = summarize(ms)
	}
	return report
}

func summarize(metrics []Metric) *Summary {
	s := &Summary{Count: len(metrics)}
	if len(metrics) == 0 {
		return s
	}

	var latencies []float64
	var totalSeconds float64
	for _, m := range metrics {
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
		s.TotalTokens += m.TotalTokens
		s.TotalPromptTokens += m.PromptTokens
		s.TotalCompletionTokens += m.CompletionTokens
		totalSeconds += m.TotalSeconds
		if m.TotalSeconds > 0 {
			latencies = append(latencies, m.TotalSeconds)
		}
	}

	count := float64(s.Count)
	s.AvgTokens = float64(s.TotalTokens) / count
	s.AvgTimeSeconds = totalSeconds / count

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		s.LatencyMax = latencies[len(latencies)-1]
		s.LatencyP50 = percentile(latencies, 50)
		s.LatencyP95 = percentile(latencies, 95)
	}
	return s
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
