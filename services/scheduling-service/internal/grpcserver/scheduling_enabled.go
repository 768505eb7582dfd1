//go:build protogen

package grpcserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	schedulingv1 "github.com/md-rashed-zaman/roomplanner/protos/gen/scheduling/v1"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/scheduling"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type server struct {
	schedulingv1.UnimplementedSchedulingServiceServer
	engine   *scheduling.Engine
	location *time.Location
}

func registerScheduling(grpcServer *grpc.Server, engine *scheduling.Engine, loc *time.Location) bool {
	if engine == nil {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	schedulingv1.RegisterSchedulingServiceServer(grpcServer, &server{engine: engine, location: loc})
	return true
}

func (s *server) GetFreeSlots(ctx context.Context, req *schedulingv1.FreeSlotsRequest) (*schedulingv1.SlotsResponse, error) {
	if err := validateID(req.GetResourceId()); err != nil {
		return nil, err
	}
	day, err := s.parseDate(req.GetDate())
	if err != nil {
		return nil, err
	}

	var res scheduling.Resource
	switch req.GetKind() {
	case schedulingv1.ResourceKind_RESOURCE_KIND_LOCATION:
		res = scheduling.LocationResource(req.GetResourceId())
	case schedulingv1.ResourceKind_RESOURCE_KIND_ATTENDEE:
		res = scheduling.AttendeeResource(req.GetResourceId())
	default:
		return nil, status.Error(codes.InvalidArgument, "kind is required")
	}

	slots, err := s.engine.FreeSlots(ctx, res, day)
	if err != nil {
		return nil, toStatus(err)
	}
	return &schedulingv1.SlotsResponse{Slots: toSlots(slots)}, nil
}

func (s *server) GetCommonAvailability(ctx context.Context, req *schedulingv1.CommonAvailabilityRequest) (*schedulingv1.SlotsResponse, error) {
	ids, err := validateIDs(req.GetAttendeeIds())
	if err != nil {
		return nil, err
	}
	day, err := s.parseDate(req.GetDate())
	if err != nil {
		return nil, err
	}
	slots, err := s.engine.CommonAvailability(ctx, ids, day)
	if err != nil {
		return nil, toStatus(err)
	}
	return &schedulingv1.SlotsResponse{Slots: toSlots(slots)}, nil
}

func (s *server) GetLocationAvailability(ctx context.Context, req *schedulingv1.LocationAvailabilityRequest) (*schedulingv1.LocationSlotsResponse, error) {
	day, err := s.parseDate(req.GetDate())
	if err != nil {
		return nil, err
	}
	var minCapacity *int
	if req.MinCapacity != nil {
		if req.GetMinCapacity() < 1 {
			return nil, status.Error(codes.InvalidArgument, "min_capacity must be positive")
		}
		c := int(req.GetMinCapacity())
		minCapacity = &c
	}
	slots, err := s.engine.LocationAvailability(ctx, day, time.Duration(req.GetMinMinutes())*time.Minute, minCapacity)
	if err != nil {
		return nil, toStatus(err)
	}
	return &schedulingv1.LocationSlotsResponse{Slots: toLocationSlots(slots)}, nil
}

func (s *server) SuggestMeetings(ctx context.Context, req *schedulingv1.SuggestMeetingsRequest) (*schedulingv1.LocationSlotsResponse, error) {
	ids, err := validateIDs(req.GetAttendeeIds())
	if err != nil {
		return nil, err
	}
	day, err := s.parseDate(req.GetDate())
	if err != nil {
		return nil, err
	}
	slots, err := s.engine.Suggest(ctx, ids, time.Duration(req.GetMinMinutes())*time.Minute, day)
	if err != nil {
		return nil, toStatus(err)
	}
	return &schedulingv1.LocationSlotsResponse{Slots: toLocationSlots(slots)}, nil
}

func (s *server) parseDate(raw string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), s.location)
	if err != nil {
		return time.Time{}, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}
	return day, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid id %q", id)
	}
	return nil
}

func validateIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, status.Error(codes.InvalidArgument, "attendee_ids is required")
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := validateID(id); err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(id))
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, scheduling.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "availability query failed")
	}
}

func toSlot(in availability.Interval) *schedulingv1.Slot {
	return &schedulingv1.Slot{
		StartTime: timestamppb.New(in.Start),
		EndTime:   timestamppb.New(in.End),
	}
}

func toSlots(in []availability.Interval) []*schedulingv1.Slot {
	out := make([]*schedulingv1.Slot, 0, len(in))
	for _, s := range in {
		out = append(out, toSlot(s))
	}
	return out
}

func toLocationSlots(in []scheduling.LocationSlot) []*schedulingv1.LocationSlot {
	out := make([]*schedulingv1.LocationSlot, 0, len(in))
	for _, s := range in {
		out = append(out, &schedulingv1.LocationSlot{
			LocationId:   s.Location.ID,
			LocationName: s.Location.Name,
			Capacity:     int32(s.Location.Capacity),
			Slot:         toSlot(s.Slot),
		})
	}
	return out
}
