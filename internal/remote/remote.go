package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	// MaxErrorBodySize caps how much of a failed response body is kept.
	MaxErrorBodySize = 4 << 10
	// MaxJSONBodySize caps how much of a successful JSON response is decoded.
	MaxJSONBodySize = 4 << 20

	emptyBody = "<empty body>"
)

var errResponseTooLarge = errors.New("response was too large or was truncated")

// RequestError is a remote call that completed with a non-2xx status.
type RequestError struct {
	// Op names the remote operation, e.g. "create content file".
	Op string
	// StatusCode is the HTTP status returned by the remote side.
	StatusCode int
	// Body is the start of the response body.
	Body string
}

// Error implements error.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: received response with status code %d: %s", e.Op, e.StatusCode, e.Body)
}

// ServerError reports whether the remote side failed with a 5xx status.
func (e *RequestError) ServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// CheckResponse returns a *RequestError when res has a non-2xx status.
// The body is consumed in that case.
func CheckResponse(op string, res *http.Response) error {
	if code := res.StatusCode; code >= 200 && code < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, MaxErrorBodySize))

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte(emptyBody)
	}

	return &RequestError{
		Op:         op,
		StatusCode: res.StatusCode,
		Body:       string(body),
	}
}

// DecodeJSON decodes a successful response body into v.
func DecodeJSON(op string, res *http.Response, v any) error {
	err := json.NewDecoder(io.LimitReader(res.Body, MaxJSONBodySize)).Decode(v)
	if err == nil {
		return nil
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", op, errResponseTooLarge)
	}

	return fmt.Errorf("%s: decode response: %w", op, err)
}

// Drain discards the rest of a response body and closes it so the
// connection can be reused.
func Drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, MaxJSONBodySize))
	_ = res.Body.Close()
}

// StatusCode returns the status of a *RequestError in err's chain, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}

	return 0
}
