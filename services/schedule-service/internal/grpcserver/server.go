//go:build protogen

package grpcserver

import (
	"context"
	"time"

	schedulev1 "github.com/tbraddock/clinicflow/protos/gen/schedule/v1"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/availability"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/storage"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type server struct {
	schedulev1.UnimplementedScheduleServiceServer
	gen  *availability.Generator
	repo *storage.ScheduleRepository
}

func Register(grpcServer *grpc.Server, gen *availability.Generator, repo *storage.ScheduleRepository) {
	schedulev1.RegisterScheduleServiceServer(grpcServer, &server{gen: gen, repo: repo})
}

// GetAvailableSlots serves the booking system the same slot computation the
// HTTP API exposes, anchored to the practice's local date.
func (s *server) GetAvailableSlots(ctx context.Context, req *schedulev1.AvailableSlotsRequest) (*schedulev1.AvailableSlotsResponse, error) {
	resp := &schedulev1.AvailableSlotsResponse{
		PracticeId: req.GetPracticeId(),
		ProviderId: req.GetProviderId(),
	}
	if req.GetPracticeId() == "" || req.GetProviderId() == "" || req.GetDate() == "" {
		return resp, nil
	}

	loc, err := s.repo.PracticeLocation(ctx, req.GetPracticeId())
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation("2006-01-02", req.GetDate(), loc)
	if err != nil {
		return resp, nil
	}

	duration := int(req.GetDurationMinutes())
	if duration <= 0 {
		duration = 30
	}
	buffer := int(req.GetBufferMinutes())
	if buffer < 0 {
		buffer = 0
	}

	slots, err := s.gen.Generate(ctx, req.GetPracticeId(), req.GetProviderId(), day, duration, buffer)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, &schedulev1.Slot{
			StartUtc:        timestamppb.New(slot.Start.UTC()),
			EndUtc:          timestamppb.New(slot.End.UTC()),
			DurationMinutes: int32(slot.DurationMinutes),
		})
	}
	return resp, nil
}

func (s *server) GetWeeklySchedule(ctx context.Context, req *schedulev1.WeeklyScheduleRequest) (*schedulev1.WeeklyScheduleResponse, error) {
	resp := &schedulev1.WeeklyScheduleResponse{
		PracticeId: req.GetPracticeId(),
		ProviderId: req.GetProviderId(),
	}
	if req.GetPracticeId() == "" || req.GetProviderId() == "" {
		return resp, nil
	}

	rows, err := s.repo.ListWeeklyAvailability(ctx, req.GetPracticeId(), req.GetProviderId())
	if err != nil {
		return nil, err
	}
	for _, wa := range rows {
		day := &schedulev1.WeeklyDay{
			Weekday:     int32(wa.Weekday),
			StartMinute: int32(wa.StartMinute),
			EndMinute:   int32(wa.EndMinute),
			IsAvailable: wa.IsAvailable,
		}
		if wa.HasBreak() {
			day.BreakStartMinute = int32(*wa.BreakStartMinute)
			day.BreakEndMinute = int32(*wa.BreakEndMinute)
		}
		resp.Days = append(resp.Days, day)
	}
	return resp, nil
}
