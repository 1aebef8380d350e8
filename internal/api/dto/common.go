package dto

// Error kinds returned in ErrorResponse.Kind.
const (
	KindAuthentication = "authentication"
	KindAuthorization  = "authorization"
	KindValidation     = "validation"
	KindNotFound       = "not_found"
	KindConflict       = "conflict"
	KindRateLimited    = "rate_limited"
	KindUnavailable    = "unavailable"
	KindInternal       = "internal"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// StatusResponse reports the outcome of an idempotent operation.
type StatusResponse struct {
	Status string `json:"status"`
}
