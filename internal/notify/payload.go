// Package notify carries the booking-created event between contexts:
// the creating side announces it, every dashboard receives it at least
// once and merges it by id.
package notify

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"carwash/internal/models"
)

// Defaults for fields missing from a received payload.
const (
	DefaultName    = "Unknown"
	DefaultEmail   = "unknown@email.com"
	DefaultPhone   = "0000000000"
	DefaultService = "Unknown Service"
	DefaultTime    = "09:00"
)

// DecodePayload turns a received payload into a complete booking.
// Absent or empty fields get defaults and malformed JSON yields an
// all-defaults record; a payload is never rejected.
func DecodePayload(raw []byte, now time.Time) *models.Booking {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		fields = nil
	}
	return FromFields(fields, now)
}

// FromFields builds a booking from loosely typed fields, applying the same
// defaults as DecodePayload.
func FromFields(fields map[string]any, now time.Time) *models.Booking {
	now = now.UTC()
	b := &models.Booking{
		ID:      or(text(fields["id"]), models.NewBookingID(now)),
		Name:    or(text(fields["name"]), DefaultName),
		Email:   or(text(fields["email"]), DefaultEmail),
		Phone:   or(text(fields["phone"]), DefaultPhone),
		Service: or(text(fields["service"]), DefaultService),
		Date:    or(text(fields["date"]), now.Format(models.DateLayout)),
		Time:    or(text(fields["time"]), DefaultTime),
		Status:  models.StatusPending,
		Message: text(fields["message"]),
	}

	if st, err := models.ParseStatus(text(fields["status"])); err == nil {
		b.Status = st
	}

	b.CreatedAt = timestamp(fields["createdAt"], now)
	b.UpdatedAt = timestamp(fields["updatedAt"], b.CreatedAt)
	return b
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// text renders scalar JSON values as strings; objects, arrays and nulls
// count as absent.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// timestamp accepts RFC 3339 strings and Unix milliseconds.
func timestamp(v any, def time.Time) time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range []string{time.RFC3339Nano, models.TimestampLayout} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
	case float64:
		if t > 0 {
			return time.UnixMilli(int64(t)).UTC()
		}
	}
	return def
}
