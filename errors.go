package ordinator

import "errors"

var (
	ErrIOFailure            = errors.New("log persistence unavailable")
	ErrNotRegistered        = errors.New("member not registered")
	ErrNotReady             = errors.New("coordinator not ready")
	ErrUnavailable          = errors.New("unit has no active owner")
	ErrCancelled            = errors.New("operation cancelled")
	ErrNoEligibleMember     = errors.New("no eligible active member")
	ErrReplayCorruption     = errors.New("log replay corruption")
	ErrNotLeader            = errors.New("not leader")
	ErrUnitNotFound         = errors.New("unit not found")
	ErrIncarnationDeparted  = errors.New("incarnation already departed")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrDataDirRequired      = errors.New("data dir cannot be empty")
	ErrStoreClosed          = errors.New("store closed")
	ErrRecordNotFound       = errors.New("record not found")
	ErrSequenceGap          = errors.New("sequence gap")
	ErrChecksumMismatch     = errors.New("checksum mismatch")
	ErrChecksumDataTooShort = errors.New("data too short to contain a checksum")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrShutdown             = errors.New("server is shutting down")
)
