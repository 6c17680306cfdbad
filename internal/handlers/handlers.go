// Package handlers contains the HTTP handler groups for the web front-end:
// authentication, the ad listing and lifecycle actions, the posting flow,
// and buyer/seller conversations.
package handlers

import (
	"errors"

	"admanager/internal/kijiji"
)

// upstreamMessage returns the upstream error message when err carries one,
// falling back to a generic line otherwise. Transport and protocol errors
// never reach the user verbatim.
func upstreamMessage(err error, fallback string) string {
	var upstream *kijiji.UpstreamError
	if errors.As(err, &upstream) && upstream.Message != "" {
		return upstream.Message
	}
	return fallback
}
