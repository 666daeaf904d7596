package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carwash/internal/database"
	"carwash/internal/domain"
	"carwash/internal/models"

	"github.com/rs/zerolog"
)

// maxIDAttempts bounds the retries on random application id collisions.
const maxIDAttempts = 3

type FormService struct {
	store  domain.FormStore
	logger *zerolog.Logger
	now    func() time.Time
}

var _ domain.FormService = (*FormService)(nil)

func NewFormService(store domain.FormStore, logger *zerolog.Logger) *FormService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FormService{store: store, logger: logger, now: time.Now}
}

func (s *FormService) SubmitApplication(ctx context.Context, app *models.Application) (*models.Application, error) {
	if app == nil {
		return nil, &models.ValidationError{Field: "application", Message: "empty application"}
	}
	a := *app
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.Status = models.ApplicationPending
	a.CreatedAt = s.now()

	generated := a.ID == ""
	for attempt := 1; ; attempt++ {
		if generated {
			a.ID = models.NewApplicationID()
		}
		err := s.store.CreateApplication(ctx, &a)
		if err == nil {
			break
		}
		if !generated || !errors.Is(err, database.ErrDuplicateID) || attempt == maxIDAttempts {
			return nil, err
		}
	}

	s.logger.Info().Str("application_id", a.ID).Str("category", a.Category).Msg("application submitted")
	return &a, nil
}

// CheckApplication looks an application up by id and the mobile number it
// was filed with. A mismatching mobile reads as not found.
func (s *FormService) CheckApplication(ctx context.Context, id, mobile string) (*models.Application, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &models.ValidationError{Field: "application_id", Message: "Please enter your application ID"}
	}
	if !models.ValidPhone(mobile) {
		return nil, &models.ValidationError{Field: "mobile", Message: "Please enter a valid 10-digit mobile number"}
	}

	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Mobile != "" && app.Mobile != mobile {
		return nil, fmt.Errorf("application %s: %w", id, database.ErrNotFound)
	}
	return app, nil
}

func (s *FormService) SubmitContact(ctx context.Context, msg *models.ContactMessage) error {
	if msg == nil {
		return &models.ValidationError{Field: "message", Message: "empty message"}
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := s.store.CreateContactMessage(ctx, msg); err != nil {
		return err
	}
	s.logger.Info().Int64("contact_id", msg.ID).Msg("contact message stored")
	return nil
}
