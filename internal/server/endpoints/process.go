package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quotient-labs/quotient/internal/api"
	"github.com/quotient-labs/quotient/internal/babbage"
	"github.com/quotient-labs/quotient/internal/inventory"
	"github.com/quotient-labs/quotient/internal/svcctx"
)

// ProcessTextEndpoint handles POST /api/process/text.
type ProcessTextEndpoint struct{}

func (e *ProcessTextEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/process/text", e.handler
}

func (e *ProcessTextEndpoint) RequiresInit() bool { return true }

func (e *ProcessTextEndpoint) Group() string { return "process" }

// handler godoc
//
//	@Summary		Process text
//	@Description	Preprocesses, extracts and normalizes items from text. Rule fallbacks are reported in the result's warnings.
//	@Tags			process
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TextRequest	true	"Text, optional source name and item limit"
//	@Success		200		{object}	inventory.Result
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Failure		504		{object}	ErrorResponse
//	@Router			/api/process/text [post]
func (e *ProcessTextEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MaxItems < 0 {
		writeError(w, http.StatusBadRequest, "max_items must not be negative")
		return
	}
	if req.Source == "" {
		req.Source = "text"
	}

	res, err := svcctx.BabbageFrom(r.Context()).Process(r.Context(), babbage.Request{
		Text:     req.Text,
		Source:   req.Source,
		MaxItems: req.MaxItems,
	})
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *ProcessTextEndpoint) Command(getServerURL func() string) *cobra.Command {
	var source, export string
	var maxItems int
	cmd := &cobra.Command{
		Use:   "text <text|@file|->",
		Short: "Process text on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0])
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var res inventory.Result
			req := TextRequest{Text: text, Source: source, MaxItems: maxItems}
			if err := client.Post(cmd.Context(), "/api/process/text", req, &res); err != nil {
				return err
			}
			return outputResult(&res, export)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source name recorded on the result")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Keep at most this many items (0 = all)")
	cmd.Flags().StringVar(&export, "export", "", "Also write the result to this file (.json, .yaml, .csv, .xlsx)")
	return cmd
}

// ProcessFileEndpoint handles POST /api/process/file.
type ProcessFileEndpoint struct {
	// MaxUploadBytes bounds the request body. Zero uses defaultMaxUpload.
	MaxUploadBytes int64
}

const defaultMaxUpload = 101 << 20

func (e *ProcessFileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/process/file", e.handler
}

func (e *ProcessFileEndpoint) RequiresInit() bool { return true }

func (e *ProcessFileEndpoint) Group() string { return "process" }

// handler godoc
//
//	@Summary		Process an uploaded document
//	@Description	Reads a txt, md, csv, xlsx or pdf upload and processes its text
//	@Tags			process
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Document"
//	@Param			max_items	formData	int		false	"Keep at most this many items"
//	@Success		200			{object}	inventory.Result
//	@Failure		400			{object}	ErrorResponse
//	@Failure		413			{object}	ErrorResponse
//	@Failure		415			{object}	ErrorResponse
//	@Failure		422			{object}	ErrorResponse
//	@Failure		502			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/api/process/file [post]
func (e *ProcessFileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit := e.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	maxItems := 0
	if v := r.FormValue("max_items"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "max_items must be a non-negative integer")
			return
		}
		maxItems = n
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	res, err := svcctx.BabbageFrom(r.Context()).ProcessUpload(r.Context(), header.Filename, data, maxItems)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *ProcessFileEndpoint) Command(getServerURL func() string) *cobra.Command {
	var export string
	var maxItems int
	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Upload a document to the server for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]string{}
			if maxItems > 0 {
				fields["max_items"] = strconv.Itoa(maxItems)
			}
			client := api.NewClient(getServerURL())
			var res inventory.Result
			if err := client.PostFile(cmd.Context(), "/api/process/file", args[0], fields, &res); err != nil {
				return err
			}
			return outputResult(&res, export)
		},
	}
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Keep at most this many items (0 = all)")
	cmd.Flags().StringVar(&export, "export", "", "Also write the result to this file (.json, .yaml, .csv, .xlsx)")
	return cmd
}

func outputResult(res *inventory.Result, export string) error {
	if export != "" {
		if err := inventory.ExportFile(export, res, ""); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", export)
	}
	return api.Output(res)
}
