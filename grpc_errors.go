package ordinator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errorDomain is the domain of ErrorInfo details attached to statuses
const errorDomain = "ordinator"

// statusMapping binds sentinel errors to grpc codes and ErrorInfo reasons.
// Order matters, the first match wins
var statusMapping = []struct {
	err    error
	code   codes.Code
	reason string
}{
	{ErrShutdown, codes.Unavailable, "SHUTDOWN"},
	{context.DeadlineExceeded, codes.DeadlineExceeded, "DEADLINE_EXCEEDED"},
	{ErrCancelled, codes.Canceled, "CANCELLED"},
	{context.Canceled, codes.Canceled, "CANCELLED"},
	{ErrNotRegistered, codes.NotFound, "NOT_REGISTERED"},
	{ErrNotReady, codes.Unavailable, "NOT_READY"},
	{ErrNotLeader, codes.Unavailable, "NOT_LEADER"},
	{ErrUnavailable, codes.Unavailable, "UNAVAILABLE"},
	{ErrNoEligibleMember, codes.FailedPrecondition, "NO_ELIGIBLE_MEMBER"},
	{ErrIncarnationDeparted, codes.FailedPrecondition, "INCARNATION_DEPARTED"},
	{ErrUnitNotFound, codes.NotFound, "UNIT_NOT_FOUND"},
	{ErrInvalidArgument, codes.InvalidArgument, "INVALID_ARGUMENT"},
	{ErrReplayCorruption, codes.DataLoss, "REPLAY_CORRUPTION"},
	{ErrIOFailure, codes.Internal, "IO_FAILURE"},
}

// toStatus converts an error into a grpc status carrying an ErrorInfo detail.
// Errors that already are statuses are returned untouched
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	for _, mapping := range statusMapping {
		if !errors.Is(err, mapping.err) {
			continue
		}
		st := status.New(mapping.code, err.Error())
		detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
			Reason: mapping.reason,
			Domain: errorDomain,
		})
		if derr != nil {
			return st.Err()
		}
		return detailed.Err()
	}
	return status.Error(codes.Unknown, err.Error())
}

// FromStatus converts a grpc status returned by ordinator services
// back into the matching sentinel error so callers can use errors.Is
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		for _, mapping := range statusMapping {
			if mapping.reason == info.GetReason() {
				return fmt.Errorf("%w: %s", mapping.err, st.Message())
			}
		}
	}

	switch st.Code() {
	case codes.Canceled:
		return fmt.Errorf("%w: %s", ErrCancelled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrNotReady, st.Message())
	}
	return err
}

// retryable tells if a call can be retried against the same or another replica
func retryable(err error) bool {
	return errors.Is(err, ErrNotReady) || errors.Is(err, ErrNotLeader) || errors.Is(err, ErrShutdown)
}
