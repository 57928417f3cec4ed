package ordinator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		err    error
		code   codes.Code
		reason string
	}{
		{err: ErrNotRegistered, code: codes.NotFound, reason: "NOT_REGISTERED"},
		{err: ErrNotReady, code: codes.Unavailable, reason: "NOT_READY"},
		{err: ErrUnavailable, code: codes.Unavailable, reason: "UNAVAILABLE"},
		{err: ErrNotLeader, code: codes.Unavailable, reason: "NOT_LEADER"},
		{err: ErrShutdown, code: codes.Unavailable, reason: "SHUTDOWN"},
		{err: ErrUnitNotFound, code: codes.NotFound, reason: "UNIT_NOT_FOUND"},
		{err: ErrNoEligibleMember, code: codes.FailedPrecondition, reason: "NO_ELIGIBLE_MEMBER"},
		{err: ErrIncarnationDeparted, code: codes.FailedPrecondition, reason: "INCARNATION_DEPARTED"},
		{err: ErrInvalidArgument, code: codes.InvalidArgument, reason: "INVALID_ARGUMENT"},
		{err: ErrReplayCorruption, code: codes.DataLoss, reason: "REPLAY_CORRUPTION"},
		{err: ErrIOFailure, code: codes.Internal, reason: "IO_FAILURE"},
		{err: ErrCancelled, code: codes.Canceled, reason: "CANCELLED"},
		{err: context.DeadlineExceeded, code: codes.DeadlineExceeded, reason: "DEADLINE_EXCEEDED"},
	}

	for _, tc := range tests {
		t.Run(tc.reason, func(t *testing.T) {
			assert := assert.New(t)
			wrapped := fmt.Errorf("request failed: %w", tc.err)
			st, ok := status.FromError(toStatus(wrapped))
			assert.True(ok)
			assert.Equal(tc.code, st.Code())
			assert.Equal(wrapped.Error(), st.Message())

			details := st.Details()
			if assert.Len(details, 1) {
				info, ok := details[0].(*errdetails.ErrorInfo)
				assert.True(ok)
				assert.Equal(tc.reason, info.GetReason())
				assert.Equal(errorDomain, info.GetDomain())
			}

			assert.ErrorIs(FromStatus(st.Err()), tc.err)
		})
	}
}

func TestToStatus_passthrough(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(toStatus(nil))
	assert.Nil(FromStatus(nil))

	existing := status.Error(codes.Aborted, "aborted")
	assert.Equal(existing, toStatus(existing))

	st, ok := status.FromError(toStatus(errors.New("boom")))
	assert.True(ok)
	assert.Equal(codes.Unknown, st.Code())

	plain := errors.New("plain")
	assert.Equal(plain, FromStatus(plain))
}

func TestFromStatus_withoutDetails(t *testing.T) {
	assert := assert.New(t)

	assert.ErrorIs(FromStatus(status.Error(codes.Unavailable, "connection refused")), ErrNotReady)
	assert.ErrorIs(FromStatus(status.Error(codes.Canceled, "cancelled")), ErrCancelled)
	assert.ErrorIs(FromStatus(status.Error(codes.DeadlineExceeded, "deadline")), context.DeadlineExceeded)

	internal := status.Error(codes.Internal, "internal")
	assert.Equal(internal, FromStatus(internal))
}

func TestRetryable(t *testing.T) {
	assert := assert.New(t)

	assert.True(retryable(ErrNotReady))
	assert.True(retryable(fmt.Errorf("%w: lost lease", ErrNotLeader)))
	assert.True(retryable(ErrShutdown))
	assert.False(retryable(ErrNotRegistered))
	assert.False(retryable(ErrUnavailable))
	assert.False(retryable(nil))
}
