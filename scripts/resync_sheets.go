package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"rentcrm/internal/config"
	"rentcrm/internal/database"
	"rentcrm/internal/google"
	"rentcrm/internal/lifecycle"
	"rentcrm/internal/service"

	"github.com/rs/zerolog"
)

// Rebuilds the bookings spreadsheet from the database, e.g. after rows were
// edited by hand or the sheet was recreated.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		dryRun     = flag.Bool("dry-run", false, "count bookings without touching the sheet")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return fmt.Errorf("google credentials_file and bookings_spreadsheet_id are required")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	bookings, err := service.NewBookingService(db, nil, lifecycle.Policy{}, &logger).ExportBookings(ctx)
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}
	if *dryRun {
		fmt.Printf("dry run: %d bookings\n", len(bookings))
		return nil
	}

	sheet, err := google.NewBookingSheet(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID, cfg.Google.SheetName)
	if err != nil {
		return fmt.Errorf("open sheet: %w", err)
	}
	if err := sheet.ReplaceAll(ctx, bookings); err != nil {
		return fmt.Errorf("replace rows: %w", err)
	}

	fmt.Printf("done: rows=%d\n", len(bookings))
	return nil
}
