package ordinator

import (
	"context"
	"errors"

	"github.com/Lord-Y/ordinator/ordinatorpb"
	"google.golang.org/grpc"
)

func (s *coordinatorService) RegisterMember(ctx context.Context, in *ordinatorpb.RegisterMemberRequest) (*ordinatorpb.RegisterMemberResponse, error) {
	member, err := s.coordinator.RegisterMember(ctx, in.MemberID, in.Incarnation, in.Address)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("memberId", member.ID).
		Str("incarnation", member.Incarnation).
		Str("address", member.Address).
		Str("status", member.Status.String()).
		Msgf("Member registered")
	return &ordinatorpb.RegisterMemberResponse{Member: memberToProto(member)}, nil
}

func (s *coordinatorService) Heartbeat(ctx context.Context, in *ordinatorpb.HeartbeatRequest) (*ordinatorpb.HeartbeatResponse, error) {
	member, err := s.coordinator.Heartbeat(ctx, in.MemberID, in.Incarnation)
	if err != nil {
		return nil, err
	}
	return &ordinatorpb.HeartbeatResponse{
		Member: memberToProto(member),
		Epoch:  s.coordinator.Snapshot().Epoch,
	}, nil
}

func (s *coordinatorService) GetAssignment(ctx context.Context, in *ordinatorpb.GetAssignmentRequest) (*ordinatorpb.GetAssignmentResponse, error) {
	entry, err := s.coordinator.GetAssignment(in.UnitID)
	if err != nil {
		return nil, err
	}
	return &ordinatorpb.GetAssignmentResponse{Assignment: assignmentToProto(entry)}, nil
}

func (s *coordinatorService) WatchAssignments(in *ordinatorpb.WatchAssignmentsRequest, stream grpc.ServerStreamingServer[ordinatorpb.Assignment]) error {
	if err := s.coordinator.checkReady(); err != nil {
		return err
	}
	if in.MemberID != "" {
		if err := s.coordinator.CheckRegistered(in.MemberID, in.Incarnation); err != nil {
			return err
		}
	}

	s.logger.Debug().
		Str("memberId", in.MemberID).
		Uint64("lastSeenSequence", in.LastSeenSequence).
		Msgf("Assignment watcher connected")

	return s.coordinator.WatchAssignments(stream.Context(), in.LastSeenSequence, func(entry AssignmentEntry) error {
		return stream.Send(assignmentToProto(entry))
	})
}

func (s *coordinatorService) AppendLog(ctx context.Context, in *ordinatorpb.AppendRequest) (*ordinatorpb.AppendResponse, error) {
	sequence, err := s.coordinator.AppendLog(ctx, in.Payload)
	if err != nil {
		return nil, err
	}
	return &ordinatorpb.AppendResponse{Sequence: sequence}, nil
}

func (s *coordinatorService) ReadLog(in *ordinatorpb.ReadRequest, stream grpc.ServerStreamingServer[ordinatorpb.LogRecord]) error {
	return streamRecords(s.coordinator, in, stream)
}

func (s *coordinatorService) DeclareUnits(ctx context.Context, in *ordinatorpb.DeclareUnitsRequest) (*ordinatorpb.DeclareUnitsResponse, error) {
	declared, err := s.coordinator.DeclareUnits(ctx, in.UnitIDs)
	if err != nil {
		return nil, err
	}
	return &ordinatorpb.DeclareUnitsResponse{Declared: declared}, nil
}

func (s *coordinatorService) ListMembers(ctx context.Context, in *ordinatorpb.ListMembersRequest) (*ordinatorpb.ListMembersResponse, error) {
	members, err := s.coordinator.ListMembers()
	if err != nil {
		return nil, err
	}

	response := &ordinatorpb.ListMembersResponse{Members: make([]*ordinatorpb.Member, 0, len(members))}
	for _, member := range members {
		response.Members = append(response.Members, memberToProto(member))
	}
	return response, nil
}

// streamRecords sends records read from the backend honoring the request limit
func streamRecords(backend LogBackend, in *ordinatorpb.ReadRequest, stream grpc.ServerStreamingServer[ordinatorpb.LogRecord]) error {
	var sent uint64
	err := backend.ReadLog(stream.Context(), in.FromSequence, in.Follow, func(record *Record) error {
		if err := stream.Send(recordToProto(record)); err != nil {
			return err
		}
		sent++
		if in.Limit > 0 && sent >= in.Limit {
			return errReadLimitReached
		}
		return nil
	})
	if errors.Is(err, errReadLimitReached) {
		return nil
	}
	return err
}
