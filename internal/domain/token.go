// Package domain contains core business types and interfaces.
//
// This file defines the delegated access grant handed to an establishment
// contact so they can capture phase 0 photos remotely.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DelegatedAccessDuration is how long a delegated access link remains valid.
const DelegatedAccessDuration = 30 * 24 * time.Hour

// DelegatedAccess is a resolved delegated access token.
//
// Issuing a new token for an inspection replaces any previous one, so at
// most one link is live per inspection.
type DelegatedAccess struct {
	ID           uuid.UUID `json:"id"`
	InspectionID uuid.UUID `json:"inspectionId"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsExpired returns true if the grant expired at or before now.
func (a *DelegatedAccess) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
