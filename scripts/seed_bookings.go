package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"carwash/internal/config"
	"carwash/internal/database"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("seed", "configs/seed.yaml", "path to seed.yaml")
		driver   = flag.String("driver", database.DriverSQLite, "sqlite3 or mysql")
		dbPath   = flag.String("db", "./data/carwash.db", "path to sqlite db")
		dsn      = flag.String("dsn", "", "mysql dsn")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seed database.SeedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Bookings) == 0 {
		return fmt.Errorf("no bookings in yaml")
	}

	db, err := database.Open(config.DatabaseConfig{Driver: *driver, Path: *dbPath, DSN: *dsn}, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	added, err := db.SeedBookings(ctx, seed)
	if err != nil {
		return err
	}

	fmt.Printf("done: added=%d skipped=%d\n", added, len(seed.Bookings)-added)
	return nil
}
