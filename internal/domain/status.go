package domain

import (
	"math"
	"time"
)

type DeliveryStatus string

const (
	DeliveryNoDate   DeliveryStatus = "no_date"
	DeliveryOverdue  DeliveryStatus = "overdue"
	DeliveryDueToday DeliveryStatus = "due_today"
	DeliveryDueSoon  DeliveryStatus = "due_soon"
	DeliveryOnTrack  DeliveryStatus = "on_track"
)

const dateLayout = "2006-01-02"

// DaysUntil returns the whole calendar days between today and the delivery
// date. Both sides are midnight-normalized, so time of day never shifts the
// result. ok is false when the date is empty or unparseable.
func DaysUntil(deliveryDate string, today time.Time) (int, bool) {
	if deliveryDate == "" {
		return 0, false
	}
	d, err := time.ParseInLocation(dateLayout, deliveryDate, today.Location())
	if err != nil {
		return 0, false
	}
	t0 := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	// Round instead of truncate so DST transitions don't lose a day.
	return int(math.Round(d.Sub(t0).Hours() / 24)), true
}

// ClassifyDelivery maps a delivery date to one of five urgency labels.
// "today" moves, so the label must be recomputed on every read.
func ClassifyDelivery(deliveryDate string, today time.Time) DeliveryStatus {
	days, ok := DaysUntil(deliveryDate, today)
	if !ok {
		return DeliveryNoDate
	}
	switch {
	case days < 0:
		return DeliveryOverdue
	case days == 0:
		return DeliveryDueToday
	case days <= 2:
		return DeliveryDueSoon
	default:
		return DeliveryOnTrack
	}
}
