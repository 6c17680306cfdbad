// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// AdRecord is a snapshot of an ad payload as it was submitted upstream.
// Records are kept per upstream user and keyed by the upstream ad id;
// they exist so an ad can be reposted after it expires or is deleted.
type AdRecord struct {
	ID        uuid.UUID
	UserID    string
	AdID      string
	Document  string
	CreatedAt time.Time
}
