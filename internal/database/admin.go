package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carwash/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// EnsureAdmin creates the admin account when it does not exist yet.
func (db *DB) EnsureAdmin(ctx context.Context, username, password string) error {
	if _, err := db.GetAdmin(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO admin_users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, string(hash), time.Now())
	if err != nil {
		if isDuplicate(err) {
			return nil
		}
		return unavailable("create admin", err)
	}
	db.logger.Info().Str("username", username).Msg("Default admin account created")
	return nil
}

func (db *DB) GetAdmin(ctx context.Context, username string) (*models.AdminUser, error) {
	var u models.AdminUser
	err := db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM admin_users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin %s: %w", username, ErrNotFound)
		}
		return nil, unavailable("get admin", err)
	}
	return &u, nil
}

// VerifyAdmin checks the password against the stored bcrypt hash.
// Unknown users and wrong passwords both yield false with a nil error.
func (db *DB) VerifyAdmin(ctx context.Context, username, password string) (bool, error) {
	u, err := db.GetAdmin(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}
