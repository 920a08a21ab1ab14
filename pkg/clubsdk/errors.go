package clubsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes returned by the admin API.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidService       = "invalid_service"
	ErrorCodeAuthenticationFailed = "authentication_failed"
	ErrorCodeVendorUnavailable    = "vendor_unavailable"
	ErrorCodeServerError          = "server_error"
	ErrorCodeRateLimited          = "rate_limit_exceeded"
	ErrorCodeUnauthorized         = "invalid_token"
)

// APIError is a non-2xx response from the admin API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Description)
}

// parseErrorResponse turns an error body into an *APIError. Bodies that
// are not ErrorResponse JSON fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	code := ErrorCodeServerError
	if resp.StatusCode == http.StatusUnauthorized {
		code = ErrorCodeUnauthorized
	}
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        code,
		Description: http.StatusText(resp.StatusCode),
	}
}
