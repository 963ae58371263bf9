package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quotient-labs/quotient/internal/api"
	"github.com/quotient-labs/quotient/internal/hardware"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/svcctx"
)

// HardwareEndpoint handles GET /api/hardware.
type HardwareEndpoint struct{}

func (e *HardwareEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/hardware", e.handler
}

func (e *HardwareEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get hardware profile
//	@Description	Returns the cached hardware profile; refresh=true re-probes the machine
//	@Tags			hardware
//	@Produce		json
//	@Param			refresh	query		bool	false	"Re-run detection"
//	@Success		200		{object}	hardware.Profile
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/hardware [get]
func (e *HardwareEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	refresh := false
	if v := r.URL.Query().Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "refresh must be a boolean")
			return
		}
		refresh = b
	}

	profile, err := svcctx.BabbageFrom(r.Context()).Hardware(r.Context(), refresh)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (e *HardwareEndpoint) Command(getServerURL func() string) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "hardware",
		Short: "Get the server's hardware profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var query url.Values
			if refresh {
				query = url.Values{"refresh": {"true"}}
			}
			var profile hardware.Profile
			if err := client.Get(cmd.Context(), "/api/hardware", query, &profile); err != nil {
				return err
			}
			return api.Output(profile)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-run hardware detection")
	return cmd
}

// SelectRequest is the body for POST /api/select.
type SelectRequest struct {
	Model       string   `json:"model,omitempty"`
	MaxMemoryGB *float64 `json:"max_memory_gb,omitempty"`
}

// SelectEndpoint handles POST /api/select.
type SelectEndpoint struct{}

func (e *SelectEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/select", e.handler
}

func (e *SelectEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Select a model configuration
//	@Description	Derives precision, quantization and placement for a model on the server's hardware
//	@Tags			models
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SelectRequest	false	"Model and memory ceiling; empty uses the configured defaults"
//	@Success		200		{object}	modelcfg.Config
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/select [post]
func (e *SelectEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cfg, err := svcctx.BabbageFrom(r.Context()).SelectModel(r.Context(), req.Model, req.MaxMemoryGB)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			// Invalid ceilings are the only other selection failure.
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (e *SelectEndpoint) Command(getServerURL func() string) *cobra.Command {
	var maxMemory float64
	cmd := &cobra.Command{
		Use:   "select [model]",
		Short: "Select a model configuration on the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req SelectRequest
			if len(args) == 1 {
				req.Model = args[0]
			}
			if cmd.Flags().Changed("max-memory") {
				req.MaxMemoryGB = &maxMemory
			}
			client := api.NewClient(getServerURL())
			var cfg modelcfg.Config
			if err := client.Post(cmd.Context(), "/api/select", req, &cfg); err != nil {
				return err
			}
			return api.Output(cfg)
		},
	}
	cmd.Flags().Float64Var(&maxMemory, "max-memory", 0, "Memory ceiling in GB")
	return cmd
}
