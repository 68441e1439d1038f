package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "caskhouse/pkg/domain-errors"
)

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

type statusMapping struct {
	status int
	label  string
}

var codeMappings = map[dErrors.Code]statusMapping{
	dErrors.CodeBadRequest:      {http.StatusBadRequest, "bad_request"},
	dErrors.CodeValidation:      {http.StatusBadRequest, "validation_error"},
	dErrors.CodeNotFound:        {http.StatusNotFound, "not_found"},
	dErrors.CodeConflict:        {http.StatusConflict, "conflict"},
	dErrors.CodeUnauthorized:    {http.StatusUnauthorized, "unauthorized"},
	dErrors.CodeForbidden:       {http.StatusForbidden, "forbidden"},
	dErrors.CodePayloadTooLarge: {http.StatusRequestEntityTooLarge, "payload_too_large"},
	dErrors.CodeTimeout:         {http.StatusGatewayTimeout, "timeout"},
	dErrors.CodeUnavailable:     {http.StatusServiceUnavailable, "service_unavailable"},
}

var internalMapping = statusMapping{http.StatusInternalServerError, "internal_error"}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encoding failure cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError maps a domain error onto a status and JSON body. Messages of
// internal errors and plain errors are never echoed to the client.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, internalMapping.status, ErrorResponse{Error: internalMapping.label})
		return
	}
	m, ok := codeMappings[domainErr.Code]
	if !ok {
		WriteJSON(w, internalMapping.status, ErrorResponse{Error: internalMapping.label})
		return
	}
	WriteJSON(w, m.status, ErrorResponse{Error: m.label, Description: domainErr.Message})
}
