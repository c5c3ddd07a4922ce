package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	trackingPrefix       = "GE"
	trackingSuffixLength = 4
	base36Alphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateTrackingNumber builds GE + base36(unix millis) + 4 random base36 chars, uppercase.
func GenerateTrackingNumber(now time.Time) (string, error) {
	suffix, err := randomBase36(rand.Reader, trackingSuffixLength)
	if err != nil {
		return "", fmt.Errorf("failed to read random bytes for tracking number: %w", err)
	}
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return trackingPrefix + stamp + suffix, nil
}

// randomBase36 draws n uniform base36 chars from r. Bytes at or above the
// largest multiple of 36 are rejected so every char is equally likely.
func randomBase36(r io.Reader, n int) (string, error) {
	limit := 256 - 256%len(base36Alphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, base36Alphabet[int(b)%len(base36Alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// NormalizeTrackingNumber trims and upper-cases user input.
func NormalizeTrackingNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsWellFormedTrackingNumber performs a cheap shape check before hitting storage.
func IsWellFormedTrackingNumber(s string) bool {
	if !strings.HasPrefix(s, trackingPrefix) || len(s) <= len(trackingPrefix)+trackingSuffixLength {
		return false
	}
	for _, r := range s[len(trackingPrefix):] {
		if !strings.ContainsRune(base36Alphabet, r) {
			return false
		}
	}
	return true
}

// TrackingResult is the authenticated lookup answer.
type TrackingResult struct {
	Delivery DeliverySummary `json:"delivery"`
	Package  Package         `json:"package"`
}

// DeliverySummary is the slice of a delivery exposed by tracking lookups.
type DeliverySummary struct {
	ID              string         `json:"id"`
	Status          DeliveryStatus `json:"status"`
	DeliveryType    DeliveryType   `json:"deliveryType"`
	DeliveryManName *string        `json:"deliveryManName,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// PublicTracking is the redacted view served without authentication.
type PublicTracking struct {
	TrackingNumber string        `json:"trackingNumber"`
	Recipient      string        `json:"recipient"`
	Destination    string        `json:"destination"`
	Status         PackageStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Redact drops everything but the public fields.
func (r TrackingResult) Redact() PublicTracking {
	return PublicTracking{
		TrackingNumber: r.Package.TrackingNumber,
		Recipient:      r.Package.Recipient,
		Destination:    r.Package.Destination,
		Status:         r.Package.Status,
		CreatedAt:      r.Package.CreatedAt,
		UpdatedAt:      r.Package.UpdatedAt,
	}
}
