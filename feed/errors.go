// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package feed

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/stockparfait/errors"
)

// Phase of the HTTP exchange in which a TransportError occurred.
type Phase int

const (
	// ConnectPhase covers DNS lookup, dialing and the TLS handshake.
	ConnectPhase Phase = iota
	// ReadPhase covers waiting for the response and reading its body.
	ReadPhase
)

func (p Phase) String() string {
	switch p {
	case ConnectPhase:
		return "connect"
	case ReadPhase:
		return "read"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// TransportError is a network-level failure: the server could not be reached,
// the TLS handshake failed, or the connection broke or stalled while reading.
type TransportError struct {
	Phase   Phase
	Timeout bool // the failure was a connect or socket timeout
	Err     error
}

func (e *TransportError) Error() string {
	kind := "failure"
	if e.Timeout {
		kind = "timeout"
	}
	return fmt.Sprintf("%s %s: %s", e.Phase, kind, e.Err.Error())
}

func (e *TransportError) Unwrap() error { return e.Err }

// newTransportError classifies err as a timeout or a generic failure.
func newTransportError(phase Phase, err error) *TransportError {
	return &TransportError{Phase: phase, Timeout: isTimeout(err), Err: err}
}

// isTimeout walks the whole chain, since outer wrappers such as *url.Error
// may report Timeout() == false for an inner timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for ; err != nil; err = stderrors.Unwrap(err) {
		if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
			return true
		}
	}
	return false
}

// StatusError is returned when the server responds with anything but 200 OK.
type StatusError struct {
	Code       int    // e.g. 404
	StatusLine string // e.g. "HTTP/1.1 404 Not Found"
}

func (e *StatusError) Error() string {
	return "unexpected response: " + e.StatusLine
}

// DecodeError means the response body (after gunzip, if any) is not a valid
// feed message.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to decode feed message: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TLSConfigError means the TLS client configuration could not be built, e.g.
// the pinned CA bundle is unreadable.
type TLSConfigError struct {
	Err error
}

func (e *TLSConfigError) Error() string {
	return "failed to configure TLS: " + e.Err.Error()
}

func (e *TLSConfigError) Unwrap() error { return e.Err }

// IsTransportError checks whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsStatusError checks whether err is or wraps a *StatusError.
func IsStatusError(err error) bool {
	var e *StatusError
	return errors.As(err, &e)
}

// IsDecodeError checks whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// IsTLSConfigError checks whether err is or wraps a *TLSConfigError.
func IsTLSConfigError(err error) bool {
	var e *TLSConfigError
	return errors.As(err, &e)
}

// Kind is a short name of the error class, for logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsTransportError(err):
		return "transport"
	case IsStatusError(err):
		return "http status"
	case IsDecodeError(err):
		return "decode"
	case IsTLSConfigError(err):
		return "tls config"
	}
	return "other"
}
