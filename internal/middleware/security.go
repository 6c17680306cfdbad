// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import "net/http"

// contentSecurityPolicy locks resources to this origin. Ad pictures are
// served from the classifieds CDN, and the posting form's cascading
// selects bootstrap through small inline scripts.
const contentSecurityPolicy = "default-src 'self'; " +
	"img-src 'self' https:; " +
	"script-src 'self' 'unsafe-inline'; " +
	"style-src 'self'; " +
	"frame-ancestors 'none'"

// SecureHeaders adds security-related HTTP headers to every response.
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		h.Set("Content-Security-Policy", contentSecurityPolicy)

		// Prevent the browser from MIME-sniffing the Content-Type.
		h.Set("X-Content-Type-Options", "nosniff")

		// Nothing here belongs in a frame.
		h.Set("X-Frame-Options", "DENY")

		// Control what information is sent in the Referer header.
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
