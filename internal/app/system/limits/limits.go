// internal/app/system/limits/limits.go
package limits

// Request size and rate limits for the JSON API.
const (
	// MaxJSONBodySize is the maximum size of a JSON request body.
	MaxJSONBodySize = 1 << 20 // 1 MB

	// PaymentRequestsPerMinute is the default per-client budget for the
	// payment endpoints.
	PaymentRequestsPerMinute = 30
)
