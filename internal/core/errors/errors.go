package errors

const (
	HttpInternalError     = "internal_error"
	HttpInvalidJsonError  = "invalid_json"
	HttpUnauthorizedError = "unauthorized"
	HttpNotFoundError     = "not_found"
	HttpStoreError        = "store_unavailable"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
