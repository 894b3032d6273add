package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrRemote matches every failure produced by a fetch against a peer service.
var ErrRemote = errors.New("remote fetch failed")

var (
	// ErrConnectTimeout indicates the TCP connection to the peer was not established in time.
	ErrConnectTimeout = fmt.Errorf("%w: connect timeout", ErrRemote)
	// ErrReadTimeout indicates the peer accepted the connection but did not answer in time.
	ErrReadTimeout = fmt.Errorf("%w: read timeout", ErrRemote)
	// ErrUnreachable indicates the peer refused or dropped the connection.
	ErrUnreachable = fmt.Errorf("%w: unreachable", ErrRemote)
	// ErrInvalidID is returned before any request is made for a non-positive id.
	ErrInvalidID = errors.New("remote id must be positive")

	errNullBody     = errors.New("body is null")
	errTrailingData = errors.New("trailing data after JSON value")
)

// IDMismatchError is a decoded record whose id is missing or differs from the one requested.
type IDMismatchError struct {
	Want int64
	Got  int64
}

func (e *IDMismatchError) Error() string {
	if e.Got == 0 {
		return "record has no id, want " + strconv.FormatInt(e.Want, 10)
	}
	return "record id " + strconv.FormatInt(e.Got, 10) + ", want " + strconv.FormatInt(e.Want, 10)
}

// HTTPError is a non-2xx answer from a peer service.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return "GET " + e.URL + ": http status " + strconv.Itoa(e.Status)
}

func (e *HTTPError) HTTPStatusCode() int { return e.Status }

func (e *HTTPError) Is(target error) bool { return target == ErrRemote }

// ClientError reports a 4xx status; the peer is healthy but rejected the lookup.
func (e *HTTPError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// DecodeError is a 2xx answer whose body could not be decoded into the target record.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("GET %s: decode body: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrRemote }

// Retryable reports whether a failed fetch may succeed when repeated with the same
// parameters: timeouts, refused connections, 5xx, 408 and 429.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrConnectTimeout) || errors.Is(err, ErrReadTimeout) || errors.Is(err, ErrUnreachable) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status >= 500:
			return true
		case httpErr.Status == 408 || httpErr.Status == 429:
			return true
		default:
			return false
		}
	}
	return false
}

// IsClientError reports whether err carries a 4xx status from the peer.
func IsClientError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.ClientError()
}

// IsTimeout reports whether err is a connect or read timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrConnectTimeout) || errors.Is(err, ErrReadTimeout)
}

func classifyTransport(url string, err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return fmt.Errorf("%w: GET %s: %v", ErrConnectTimeout, url, err)
		}
		return fmt.Errorf("%w: GET %s: %v", ErrUnreachable, url, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: GET %s: %v", ErrReadTimeout, url, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: GET %s: %v", ErrReadTimeout, url, err)
	}
	return fmt.Errorf("%w: GET %s: %v", ErrUnreachable, url, err)
}
