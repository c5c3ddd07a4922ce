package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryManStats summarizes a courier's deliveries.
type DeliveryManStats struct {
	Total       int             `json:"total"`
	Completed   int             `json:"completed"`
	Pending     int             `json:"pending"`
	InProgress  int             `json:"inProgress"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ThisWeek    int             `json:"thisWeek"`
	ThisMonth   int             `json:"thisMonth"`
}

// ComputeDeliveryManStats builds courier stats as of now.
func ComputeDeliveryManStats(deliveries []Delivery, now time.Time) DeliveryManStats {
	stats := DeliveryManStats{TotalAmount: decimal.Zero}
	weekStart := startOfWeek(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for _, d := range deliveries {
		stats.Total++
		switch d.Status {
		case DeliveryDelivered, DeliveryTransferred:
			stats.Completed++
			stats.TotalAmount = stats.TotalAmount.Add(d.TotalAmount)
		case DeliveryAssigned, DeliveryPending:
			stats.Pending++
		case DeliveryInProgress, DeliveryAccepted, DeliveryIssueReported:
			stats.InProgress++
		}
		if !d.CreatedAt.Before(weekStart) {
			stats.ThisWeek++
		}
		if !d.CreatedAt.Before(monthStart) {
			stats.ThisMonth++
		}
	}
	return stats
}

// DeliveryStats is the admin-wide count of deliveries per status.
type DeliveryStats struct {
	Total          int                    `json:"total"`
	ByStatus       map[DeliveryStatus]int `json:"byStatus"`
	TotalCollected decimal.Decimal        `json:"totalCollected"`
}

// HistoryPeriod selects the window of the delivery history.
type HistoryPeriod string

const (
	PeriodDay   HistoryPeriod = "day"
	PeriodWeek  HistoryPeriod = "week"
	PeriodMonth HistoryPeriod = "month"
)

// Start returns the beginning of the period containing now. Unknown periods
// fall back to the last seven days.
func (p HistoryPeriod) Start(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case PeriodWeek:
		return startOfWeek(now)
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	return now.AddDate(0, 0, -7)
}

// DailyHistory is one day of completed work.
type DailyHistory struct {
	Date       string          `json:"date"`
	Deliveries int             `json:"deliveries"`
	Packages   int             `json:"packages"`
	Amount     decimal.Decimal `json:"amount"`
}

// BuildDeliveryHistory groups completed deliveries by completion day, newest first.
func BuildDeliveryHistory(deliveries []Delivery, from time.Time) []DailyHistory {
	byDay := map[string]*DailyHistory{}
	for _, d := range deliveries {
		completed := d.CompletedAt
		if completed == nil {
			completed = d.TransferredAt
		}
		if completed == nil || completed.Before(from) {
			continue
		}
		key := completed.Format("2006-01-02")
		day, ok := byDay[key]
		if !ok {
			day = &DailyHistory{Date: key, Amount: decimal.Zero}
			byDay[key] = day
		}
		day.Deliveries++
		day.Packages += len(d.Packages)
		day.Amount = day.Amount.Add(d.TotalAmount)
	}
	out := make([]DailyHistory, 0, len(byDay))
	for _, day := range byDay {
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func startOfWeek(now time.Time) time.Time {
	offset := (int(now.Weekday()) + 6) % 7 // monday first
	day := now.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
}
