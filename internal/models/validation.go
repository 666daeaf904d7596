package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation error")

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe  = regexp.MustCompile(`^\d{10}$`)
	aadharRe = regexp.MustCompile(`^\d{12}$`)
)

// ValidationError describes malformed user input for one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func ValidEmail(s string) bool  { return emailRe.MatchString(s) }
func ValidPhone(s string) bool  { return phoneRe.MatchString(s) }
func ValidAadhar(s string) bool { return aadharRe.MatchString(s) }

// Validate checks a booking submitted through the public form.
func (b *Booking) Validate() error {
	switch {
	case strings.TrimSpace(b.Name) == "":
		return invalid("name", "Please enter your name")
	case !ValidEmail(b.Email):
		return invalid("email", "Please enter a valid email address")
	case !ValidPhone(b.Phone):
		return invalid("phone", "Please enter a valid 10-digit phone number")
	case strings.TrimSpace(b.Service) == "":
		return invalid("service", "Please select a service")
	}
	if _, err := time.Parse(DateLayout, b.Date); err != nil {
		return invalid("date", "Please select a valid date")
	}
	if _, err := time.Parse(TimeLayout, b.Time); err != nil {
		return invalid("time", "Please select a valid time")
	}
	if b.Status != "" && !b.Status.Valid() {
		return invalid("status", "Unknown status")
	}
	return nil
}

// ParseStatus validates a status value coming from the outside.
func ParseStatus(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", invalid("status", fmt.Sprintf("unknown status %q", s))
	}
	return st, nil
}
