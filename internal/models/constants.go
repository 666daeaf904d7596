package models

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// StatusAll is the status filter value that matches every booking.
const StatusAll = "all"

const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04"
	TimestampLayout = "2006-01-02 15:04:05"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DefaultPageSize is the dashboard page size.
	DefaultPageSize = 10

	// SlotBookings holds the full JSON array of bookings in the fallback cache.
	SlotBookings = "carWashBookings"

	// SlotNewBooking is the transient creation mailbox.
	SlotNewBooking = "newBooking"

	// DefaultPollInterval in seconds for the mailbox channel.
	DefaultPollInterval = 2
)

var statuses = []BookingStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// Statuses lists every known status in display order.
func Statuses() []BookingStatus {
	out := make([]BookingStatus, len(statuses))
	copy(out, statuses)
	return out
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses the dashboard may move a booking to.
func (s BookingStatus) NextStatuses() []BookingStatus {
	return transitions[s]
}

// CanTransition reports whether from -> to is a legal lifecycle move.
// The store does not call this; it accepts any overwrite.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
