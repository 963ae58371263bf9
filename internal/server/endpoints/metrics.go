package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quotient-labs/quotient/internal/api"
	"github.com/quotient-labs/quotient/internal/metrics"
	"github.com/quotient-labs/quotient/internal/svcctx"
)

// MetricsEndpoint handles GET /api/metrics.
type MetricsEndpoint struct{}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics", e.handler
}

func (e *MetricsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		LLM call metrics
//	@Description	Overall, per-stage and per-provider summaries of recorded model calls
//	@Tags			metrics
//	@Produce		json
//	@Param			stage		query		string	false	"Filter by stage (canonicalize, segment, extract)"
//	@Param			provider	query		string	false	"Filter by provider"
//	@Param			model		query		string	false	"Filter by model"
//	@Success		200			{object}	metrics.Report
//	@Failure		503			{object}	ErrorResponse
//	@Router			/api/metrics [get]
func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	recorder := svcctx.RecorderFrom(r.Context())
	if recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics recorder not initialized")
		return
	}

	f := metrics.Filter{
		Stage:    r.URL.Query().Get("stage"),
		Provider: r.URL.Query().Get("provider"),
		Model:    r.URL.Query().Get("model"),
	}
	writeJSON(w, http.StatusOK, recorder.GetReport(f))
}

func (e *MetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var stage, provider, model string
	var table bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Get LLM call metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if stage != "" {
				query.Set("stage", stage)
			}
			if provider != "" {
				query.Set("provider", provider)
			}
			if model != "" {
				query.Set("model", model)
			}

			client := api.NewClient(getServerURL())
			var report metrics.Report
			if err := client.Get(cmd.Context(), "/api/metrics", query, &report); err != nil {
				return err
			}
			if !table {
				return api.Output(report)
			}

			fmt.Printf("%-14s %6s %6s %10s %8s %8s\n", "STAGE", "CALLS", "ERRORS", "TOKENS", "P50", "P95")
			stages := make([]string, 0, len(report.ByStage))
			for s := range report.ByStage {
				stages = append(stages, s)
			}
			sort.Strings(stages)
			for _, s := range stages {
				sum := report.ByStage[s]
				fmt.Printf("%-14s %6d %6d %10d %7.2fs %7.2fs\n",
					s, sum.Count, sum.ErrorCount, sum.TotalTokens, sum.LatencyP50, sum.LatencyP95)
			}
			if report.Overall != nil {
				fmt.Printf("%-14s %6d %6d %10d %7.2fs %7.2fs\n", "total",
					report.Overall.Count, report.Overall.ErrorCount, report.Overall.TotalTokens,
					report.Overall.LatencyP50, report.Overall.LatencyP95)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Filter by stage")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model")
	cmd.Flags().BoolVar(&table, "table", false, "Print a per-stage table instead of structured output")

	return cmd
}
