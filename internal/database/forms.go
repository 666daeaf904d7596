package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carwash/internal/models"
)

func (db *DB) CreateApplication(ctx context.Context, app *models.Application) error {
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now()
	}
	if app.Status == "" {
		app.Status = models.ApplicationPending
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO applications (id, name, aadhar, category, address, income, mobile, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.Name, app.Aadhar, app.Category, app.Address, app.Income, app.Mobile, app.Status, app.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("create application %s: %w", app.ID, ErrDuplicateID)
		}
		return unavailable("create application", err)
	}
	return nil
}

func (db *DB) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	var a models.Application
	err := db.QueryRowContext(ctx,
		`SELECT id, name, aadhar, category, COALESCE(address, ''), income, mobile, status, created_at
		 FROM applications WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Aadhar, &a.Category, &a.Address, &a.Income, &a.Mobile, &a.Status, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
		}
		return nil, unavailable("get application", err)
	}
	return &a, nil
}

func (db *DB) CreateContactMessage(ctx context.Context, msg *models.ContactMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO contact_messages (name, email, phone, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.Name, msg.Email, msg.Phone, msg.Message, msg.CreatedAt)
	if err != nil {
		return unavailable("create contact message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return unavailable("create contact message", err)
	}
	msg.ID = id
	return nil
}
