package client

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/integrail/gsearch/pkg/client/dto"
)

type ErrorKind int

const (
	// KindTerminal is a non-retryable status or a retryable one with no attempts left.
	KindTerminal ErrorKind = iota
	// KindTransport is a network level failure on the last attempt.
	KindTransport
)

func (k ErrorKind) String() string {
	if k == KindTransport {
		return "transport"
	}
	return "terminal"
}

type RequestError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Attempts   int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsRetryableStatus reports whether the status is rate limiting or a server fault.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func newStatusError(code int, body []byte, attempts int) *RequestError {
	message := fmt.Sprintf("API request failed with status %d", code)
	var errResp dto.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return &RequestError{
		Kind:       KindTerminal,
		StatusCode: code,
		Message:    message,
		Attempts:   attempts,
	}
}

func newTransportError(err error, attempts int) *RequestError {
	return &RequestError{
		Kind:     KindTransport,
		Message:  transportMessage(err),
		Attempts: attempts,
		Err:      err,
	}
}

// transportMessage drops the request URL from *url.Error since it carries the api key.
func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
