package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/quotient-labs/quotient/internal/extraction"
	"github.com/quotient-labs/quotient/internal/hardware"
	"github.com/quotient-labs/quotient/internal/ingest"
	"github.com/quotient-labs/quotient/internal/modelcfg"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 16 << 20

// TextRequest is the body shared by the text endpoints.
type TextRequest struct {
	Text     string `json:"text"`
	Source   string `json:"source,omitempty"`
	MaxItems int    `json:"max_items,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body; v keeps its zero value.
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	var (
		notFound    *ingest.FileNotFoundError
		tooLarge    *ingest.FileTooLargeError
		unsupported *ingest.UnsupportedFormatError
		model       *modelcfg.UnsupportedModelError
		hw          *hardware.HardwareDetectionError
		timeout     *extraction.ExtractionTimeoutError
		malformed   *extraction.MalformedOutputError
		noOutput    *extraction.NoOutputError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &model):
		return http.StatusUnprocessableEntity
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &malformed), errors.As(err, &noOutput):
		return http.StatusBadGateway
	case errors.As(err, &hw):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// readInput returns the text argument, or the contents of the file it
// names when it starts with @, or stdin for "-".
func readInput(arg string) (string, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return "", fmt.Errorf("read %s: %w", arg[1:], err)
		}
		return string(data), nil
	}
	return arg, nil
}
