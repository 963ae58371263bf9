package endpoints

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quotient-labs/quotient/internal/api"
	"github.com/quotient-labs/quotient/internal/extraction"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/preprocess"
	"github.com/quotient-labs/quotient/internal/svcctx"
)

// PreprocessResponse is the response for POST /api/preprocess.
type PreprocessResponse struct {
	Result       preprocess.Result `json:"result"`
	Passthroughs []string          `json:"passthroughs"`
	Segments     []string          `json:"segments"`
	Model        modelcfg.Config   `json:"model"`
}

// PreprocessEndpoint handles POST /api/preprocess.
type PreprocessEndpoint struct{}

func (e *PreprocessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/preprocess", e.handler
}

func (e *PreprocessEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Preprocess text
//	@Description	Runs normalize, canonicalize and segment; failed model stages pass their input through
//	@Tags			extraction
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TextRequest	true	"Text to preprocess"
//	@Success		200		{object}	PreprocessResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/preprocess [post]
func (e *PreprocessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, cfg := svcctx.BabbageFrom(r.Context()).Preprocess(r.Context(), req.Text)
	passthroughs := res.Passthroughs()
	if passthroughs == nil {
		passthroughs = []string{}
	}
	segments := preprocess.Segments(res.Segmented)
	if segments == nil {
		segments = []string{}
	}
	writeJSON(w, http.StatusOK, PreprocessResponse{
		Result:       res,
		Passthroughs: passthroughs,
		Segments:     segments,
		Model:        cfg,
	})
}

func (e *PreprocessEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess <text|@file|->",
		Short: "Preprocess text on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0])
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp PreprocessResponse
			if err := client.Post(cmd.Context(), "/api/preprocess", TextRequest{Text: text}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ExtractResponse is the response for POST /api/extract.
type ExtractResponse struct {
	Items []extraction.Item `json:"items"`
	Model modelcfg.Config   `json:"model"`
	// Fallback is set when the items came from the rule tier.
	Fallback bool `json:"fallback"`
}

// ExtractEndpoint handles POST /api/extract.
type ExtractEndpoint struct{}

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/extract", e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Extract items
//	@Description	Runs the extraction engine on text without preprocessing or normalization
//	@Tags			extraction
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TextRequest	true	"Text to extract from"
//	@Success		200		{object}	ExtractResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		504		{object}	ErrorResponse
//	@Router			/api/extract [post]
func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items, cfg, err := svcctx.BabbageFrom(r.Context()).Extract(r.Context(), req.Text)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	if items == nil {
		items = []extraction.Item{}
	}
	resp := ExtractResponse{Items: items, Model: cfg}
	for _, it := range items {
		if it.Tier == extraction.TierRules {
			resp.Fallback = true
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <text|@file|->",
		Short: "Extract items from text on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return api.Output(ExtractResponse{Items: []extraction.Item{}})
			}
			client := api.NewClient(getServerURL())
			var resp ExtractResponse
			if err := client.Post(cmd.Context(), "/api/extract", TextRequest{Text: text}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
