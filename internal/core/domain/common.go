package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the single settlement currency of the operator.
const Currency = "XAF"

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"` // UserID Reference
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"` // UserID Reference
}

// Caller is the authenticated principal on whose behalf a core operation runs.
type Caller struct {
	UserID string
	Role   UserRole
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanActFor reports whether the caller is an admin or the given user.
func (c Caller) CanActFor(userID string) bool {
	return c.IsAdmin() || c.UserID == userID
}

// DateRange is an optional inclusive time window.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t lies in the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func timePtr(t time.Time) *time.Time {
	return &t
}
