package bot

import (
	"errors"

	"carwash/internal/database"
	"carwash/internal/models"
)

// storeErrorReplies maps store failures to what staff should do next.
var storeErrorReplies = []struct {
	target error
	reply  string
}{
	{database.ErrNotFound, "That booking no longer exists. Use /bookings to refresh."},
	{database.ErrDuplicateID, "A booking with this ID already exists."},
	{database.ErrUnavailable, "The booking store is unavailable right now. Showing cached data; try again shortly."},
}

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	for _, e := range storeErrorReplies {
		if errors.Is(err, e.target) {
			return e.reply
		}
	}
	return "Something went wrong while processing your request. Please try again later."
}
