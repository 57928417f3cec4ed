package ordinator

import (
	"context"

	"github.com/Lord-Y/ordinator/ordinatorpb"
	"google.golang.org/grpc"
)

func (s *logService) Append(ctx context.Context, in *ordinatorpb.AppendRequest) (*ordinatorpb.AppendResponse, error) {
	sequence, err := s.backend.AppendLog(ctx, in.Payload)
	if err != nil {
		s.logger.Error().Err(err).Msgf("Fail to append record")
		return nil, err
	}
	return &ordinatorpb.AppendResponse{Sequence: sequence}, nil
}

func (s *logService) Read(in *ordinatorpb.ReadRequest, stream grpc.ServerStreamingServer[ordinatorpb.LogRecord]) error {
	return streamRecords(s.backend, in, stream)
}
