//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/tbraddock/clinicflow/services/schedule-service/internal/availability"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/storage"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *availability.Generator, _ *storage.ScheduleRepository) error {
	return nil
}
