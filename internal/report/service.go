package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"courtbook/internal/clock"
	"courtbook/internal/config"
	"courtbook/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SlotSource provides the current window.
type SlotSource interface {
	ListSlots(ctx context.Context) ([]models.Slot, error)
}

// Notifier delivers a finished report.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// Service writes periodic XLSX reports of booked slots.
type Service struct {
	source   SlotSource
	clock    clock.Clock
	config   config.ReportConfig
	notifier Notifier
	logger   *zerolog.Logger
}

func NewService(source SlotSource, clk clock.Clock, cfg config.ReportConfig, notifier Notifier, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		source:   source,
		clock:    clk,
		config:   cfg,
		notifier: notifier,
		logger:   logger,
	}
}

// GenerateFilename names a report after its creation time.
func GenerateFilename(t time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", t.Format("20060102_150405"))
}

// Start schedules Generate on the configured cron schedule until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Report service is disabled")
		return nil
	}

	c := cron.New(cron.WithLocation(s.clock.Now().Location()))
	_, err := c.AddFunc(s.config.Schedule, func() {
		if _, err := s.Generate(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled report failed")
		}
	})
	if err != nil {
		return fmt.Errorf("parse report schedule %q: %w", s.config.Schedule, err)
	}

	s.logger.Info().Str("schedule", s.config.Schedule).Str("dir", s.config.OutputDir).Msg("Report service started")
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// Generate writes the report to the output directory, sends it through the
// notifier when one is set, and returns the file path.
func (s *Service) Generate(ctx context.Context) (string, error) {
	slots, err := s.source.ListSlots(ctx)
	if err != nil {
		return "", fmt.Errorf("list slots: %w", err)
	}

	wb, err := BuildSlotsWorkbook(slots, true)
	if err != nil {
		return "", fmt.Errorf("build workbook: %w", err)
	}
	defer wb.Close()

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return "", fmt.Errorf("render workbook: %w", err)
	}

	if err := os.MkdirAll(s.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	now := s.clock.Now()
	name := GenerateFilename(now)
	path := filepath.Join(s.config.OutputDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	booked := 0
	for _, sl := range slots {
		if sl.Booked {
			booked++
		}
	}
	s.logger.Info().Str("path", path).Int("booked", booked).Msg("Booking report written")

	if s.notifier != nil {
		caption := fmt.Sprintf("Court bookings as of %s: %d booked of %d slots", now.Format("2006-01-02"), booked, len(slots))
		if err := s.notifier.SendDocument(ctx, name, bytes.NewReader(buf.Bytes()), caption); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to deliver booking report")
		}
	}

	return path, nil
}
