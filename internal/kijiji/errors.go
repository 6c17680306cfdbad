// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package kijiji

import "fmt"

// TransportError reports a network-level failure (connection refused,
// timeout, TLS). It is never retried by the client; retry policy belongs
// to the caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("kijiji %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response body that could not be parsed as the
// expected format, or a well-formed response missing fields the protocol
// guarantees.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("kijiji %s: protocol: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// UpstreamError reports a non-success status from the upstream API. The
// Message is the human-readable reason decoded from the error envelope
// and is safe to show to the user.
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("kijiji %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}
