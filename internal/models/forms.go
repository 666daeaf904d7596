package models

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// AdminUser is a dashboard operator.
type AdminUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type ApplicationStatus string

const (
	ApplicationPending    ApplicationStatus = "pending"
	ApplicationProcessing ApplicationStatus = "processing"
	ApplicationApproved   ApplicationStatus = "approved"
	ApplicationRejected   ApplicationStatus = "rejected"
)

// Describe returns the customer-facing status line.
func (s ApplicationStatus) Describe() string {
	switch s {
	case ApplicationApproved:
		return "Your application has been approved"
	case ApplicationRejected:
		return "Your application has been rejected"
	case ApplicationProcessing:
		return "Your application is being processed"
	default:
		return "Your application is under review"
	}
}

// Application is a ration-card application from the public site.
type Application struct {
	ID        string            `json:"application_id"`
	Name      string            `json:"name"`
	Aadhar    string            `json:"aadhar"`
	Category  string            `json:"category"`
	Address   string            `json:"address"`
	Income    string            `json:"income"`
	Mobile    string            `json:"mobile"`
	Status    ApplicationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewApplicationID returns "APP" followed by six random digits.
func NewApplicationID() string {
	return fmt.Sprintf("APP%06d", rand.IntN(1000000))
}

func (a *Application) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", "Please enter your name")
	}
	if !ValidAadhar(a.Aadhar) {
		return invalid("aadhar", "Please enter a valid 12-digit Aadhar number")
	}
	if a.Mobile != "" && !ValidPhone(a.Mobile) {
		return invalid("mobile", "Please enter a valid 10-digit mobile number")
	}
	return nil
}

// ContactMessage is a message left through the contact form.
type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks email and, when present, the phone number.
func (c *ContactMessage) Validate() error {
	if !ValidEmail(c.Email) {
		return invalid("email", "Please enter a valid email address")
	}
	if c.Phone != "" && !ValidPhone(c.Phone) {
		return invalid("phone", "Please enter a valid 10-digit phone number")
	}
	return nil
}
