package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

const (
	msgNoFilePart       = "No file part"
	msgNoSelectedFile   = "No selected file"
	msgExtractionFailed = "Could not extract text from the document."
	msgUploadTooLarge   = "Uploaded file is too large."
	msgInternal         = "Failed to process the document."
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrExtraction):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// analyzeErrorBody builds the client-facing body for a failed analysis.
// unsupportedStatus is the configured status for unknown extensions.
func analyzeErrorBody(err error, unsupportedStatus int) (int, errorResponse, string) {
	var unsupported *domain.UnsupportedFileTypeError
	if errors.As(err, &unsupported) {
		return unsupportedStatus, errorResponse{Error: unsupported.Error()}, "unsupported"
	}

	status := mapErrorToHTTPStatus(err)
	switch {
	case status == http.StatusRequestEntityTooLarge:
		return status, errorResponse{Error: msgUploadTooLarge}, "invalid"
	case domain.IsKind(err, domain.ErrExtraction):
		body := errorResponse{Error: msgExtractionFailed}
		var decodeErr *domain.DecodeError
		if errors.As(err, &decodeErr) {
			body.Details = decodeErr.Error()
		}
		return status, body, "extraction_error"
	case status == http.StatusBadRequest:
		return status, errorResponse{Error: msgNoSelectedFile}, "invalid"
	default:
		return status, errorResponse{Error: msgInternal}, "error"
	}
}
