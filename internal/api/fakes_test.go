package api

import (
	"context"
	"errors"
	"sort"
	"sync"

	"carwash/internal/database"
	"carwash/internal/models"
	"carwash/internal/service"
	"carwash/internal/viewmodel"
)

type fakeBookings struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
	err      error
}

func newFakeBookings(list ...*models.Booking) *fakeBookings {
	f := &fakeBookings{bookings: make(map[string]*models.Booking)}
	for _, b := range list {
		f.bookings[b.ID] = b
	}
	return f
}

func (f *fakeBookings) CreateBooking(_ context.Context, b *models.Booking) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	c := b.Clone()
	if c.ID == "" {
		c.ID = "BK000001"
	}
	if _, ok := f.bookings[c.ID]; ok {
		return nil, database.ErrDuplicateID
	}
	c.Status = models.StatusPending
	f.bookings[c.ID] = c
	return c, nil
}

func (f *fakeBookings) ListBookings(context.Context) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Booking
	for _, b := range f.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id string, status models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	b, ok := f.bookings[id]
	if !ok {
		return database.ErrNotFound
	}
	b.Status = status
	return nil
}

func (f *fakeBookings) SearchBookings(ctx context.Context, term, status, date string) ([]*models.Booking, error) {
	list, err := f.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	vs := viewmodel.DefaultViewState()
	vs.SearchTerm, vs.StatusFilter = term, status
	return viewmodel.Filter(list, vs), nil
}

func (f *fakeBookings) DeleteBooking(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.bookings, id)
	return nil
}

func (f *fakeBookings) Stats(ctx context.Context) (models.Stats, error) {
	list, err := f.ListBookings(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	var s models.Stats
	for _, b := range list {
		s.Add(b.Status)
	}
	return s, nil
}

type fakeAuth struct{}

func (fakeAuth) AdminLogin(_ context.Context, username, password string) (string, error) {
	if username == "admin" && password == "admin123" {
		return "good-token", nil
	}
	return "", service.ErrInvalidCredentials
}

func (fakeAuth) ValidateToken(token string) (string, error) {
	if token == "good-token" {
		return "admin", nil
	}
	return "", service.ErrInvalidToken
}

type fakeForms struct {
	apps map[string]*models.Application
}

func (f *fakeForms) SubmitApplication(_ context.Context, app *models.Application) (*models.Application, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}
	c := *app
	c.ID = "APP123456"
	c.Status = models.ApplicationPending
	f.apps[c.ID] = &c
	return &c, nil
}

func (f *fakeForms) CheckApplication(_ context.Context, id, mobile string) (*models.Application, error) {
	app, ok := f.apps[id]
	if !ok || app.Mobile != mobile {
		return nil, database.ErrNotFound
	}
	return app, nil
}

func (f *fakeForms) SubmitContact(_ context.Context, msg *models.ContactMessage) error {
	return msg.Validate()
}

type fakeHealth struct{ err error }

func (h fakeHealth) PingContext(context.Context) error { return h.err }

var errDown = errors.New("db down")
