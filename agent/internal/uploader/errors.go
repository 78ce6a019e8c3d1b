package uploader

import "fmt"

// DeliveryError is a failed upload attempt. StatusCode is 0 when the request
// never produced a response (DNS, TCP, TLS, timeout).
type DeliveryError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("uploader: %s", e.Message)
	}
	return fmt.Sprintf("uploader: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Permanent reports whether retrying the same request cannot succeed
// without operator action (bad credentials, malformed request).
func (e *DeliveryError) Permanent() bool {
	switch e.StatusCode {
	case 400, 401, 403, 404, 413, 422:
		return true
	}
	return false
}
