// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package kijiji

import "admanager/internal/wire"

// Fallback messages returned when an error response does not match any
// known envelope shape. Callers always receive a displayable string.
const (
	unknownAPIError    = "Unknown API error"
	unknownMobileError = "Unknown mobile API error"
)

// errorReason extracts the human-readable message from the primary API's
// error envelope:
//
//	api-base-error
//	  api-field-errors?          (present for field validation failures)
//	    api-field-error
//	  api-errors
//	    api-error
//	      message
//
// Any missing key degrades to the fixed fallback string so the caller's
// error path stays uniform.
func errorReason(doc wire.Document) string {
	if doc == nil {
		return unknownAPIError
	}

	base, ok := doc.GetMap("api-base-error")
	if !ok {
		return unknownAPIError
	}

	// Field validation failures nest the real error one level deeper.
	if fieldErrs := base.List("api-field-errors", "api-field-error"); len(fieldErrs) > 0 {
		base = fieldErrs[0]
	}

	errs := base.List("api-errors", "api-error")
	if len(errs) == 0 {
		return unknownAPIError
	}
	if msg := errs[0].GetString("message"); msg != "" {
		return msg
	}
	return unknownAPIError
}

// mobileEnvelope is the image-upload API's JSON error envelope. The body
// either carries a top-level message or a response.errors list with
// severity and short/long messages.
type mobileEnvelope struct {
	Message  string `json:"message"`
	Response struct {
		Errors []struct {
			Severity     string `json:"severity"`
			ShortMessage string `json:"shortMessage"`
			LongMessage  string `json:"longMessage"`
		} `json:"errors"`
	} `json:"response"`
}

// reason picks the most descriptive message available, falling back to
// the fixed string when the envelope carries none.
func (e *mobileEnvelope) reason() string {
	if e.Message != "" {
		return e.Message
	}
	for _, item := range e.Response.Errors {
		if item.LongMessage != "" {
			return item.LongMessage
		}
		if item.ShortMessage != "" {
			return item.ShortMessage
		}
	}
	return unknownMobileError
}
