package dto

// ErrorResponse is the body of every non-2xx response. Error is a stable
// machine-readable code such as "invalid_settings".
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// NewErrorResponse builds the body for status with err's message.
func NewErrorResponse(code string, status int, err error) ErrorResponse {
	r := ErrorResponse{Error: code, Code: status}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}

// HealthResponse is returned by the health and readiness checks
type HealthResponse struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	CacheBackend string `json:"cache_backend,omitempty"`
	Degraded     bool   `json:"degraded,omitempty"`
}
