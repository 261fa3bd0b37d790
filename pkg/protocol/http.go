package protocol

import (
	"fmt"
	"net/http"

	"github.com/detsql/detsql/pkg/util/json"
)

// HTTPProtocol is a struct used as a selector for request/response protocol utility methods
type HTTPProtocol struct{}

// HTTPError represents an http error response
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error returns the error string
func (he HTTPError) Error() string {
	return he.Body
}

// BadRequest creates a BadRequest HTTPError
func (hp HTTPProtocol) BadRequest(message string) HTTPError {
	return HTTPError{
		StatusCode: http.StatusBadRequest,
		Body:       message,
	}
}

// NotFound creates a NotFound HTTPError
func (hp HTTPProtocol) NotFound(message string) HTTPError {
	if message == "" {
		message = "Not Found"
	}
	return HTTPError{
		StatusCode: http.StatusNotFound,
		Body:       message,
	}
}

// ServiceUnavailable creates a ServiceUnavailable HTTPError. It is used when a request gives
// up waiting for a shared resource; clients may retry.
func (hp HTTPProtocol) ServiceUnavailable(message string) HTTPError {
	if message == "" {
		message = "Service Unavailable"
	}
	return HTTPError{
		StatusCode: http.StatusServiceUnavailable,
		Body:       message,
	}
}

// InternalServerError creates an InternalServerError HTTPError
func (hp HTTPProtocol) InternalServerError(message string) HTTPError {
	if message == "" {
		message = "Internal Server Error"
	}
	return HTTPError{
		StatusCode: http.StatusInternalServerError,
		Body:       message,
	}
}

// HTTPResponse represents a data envelope for our HTTP messaging
type HTTPResponse struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
	Warning string      `json:"warning,omitempty"`
}

// WriteData wraps the data payload in an HTTPResponse and writes the resulting response using the
// http.ResponseWriter
func (hp HTTPProtocol) WriteData(w http.ResponseWriter, data interface{}) {
	hp.WriteResponse(w, &HTTPResponse{
		Code: http.StatusOK,
		Data: data,
	})
}

// WriteDataWithWarning writes data like WriteData and sets the Warning field of the envelope.
func (hp HTTPProtocol) WriteDataWithWarning(w http.ResponseWriter, data interface{}, warning string) {
	hp.WriteResponse(w, &HTTPResponse{
		Code:    http.StatusOK,
		Data:    data,
		Warning: warning,
	})
}

// WriteError wraps the HTTPError in a HTTPResponse and writes it via http.ResponseWriter
func (hp HTTPProtocol) WriteError(w http.ResponseWriter, err HTTPError) {
	status := err.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	hp.WriteResponse(w, &HTTPResponse{
		Code:    status,
		Message: err.Body,
	})
}

// WriteResponse writes the provided HTTPResponse instance via http.ResponseWriter
func (hp HTTPProtocol) WriteResponse(w http.ResponseWriter, r *HTTPResponse) {
	status := r.Code
	resp, err := json.Marshal(r)
	if err != nil {
		status = http.StatusInternalServerError
		resp, _ = json.Marshal(&HTTPResponse{
			Code:    status,
			Message: fmt.Sprintf("Error: %s", err),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(resp)
}
