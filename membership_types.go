package ordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MemberStatus represent the liveness status of a member incarnation.
// The status can only be Joining, Active, Suspect, Departed
type MemberStatus uint32

const (
	// Joining is a member that registered or whose pod has been created
	// but that did not prove its liveness yet
	Joining MemberStatus = iota

	// Active is a member that heartbeats within the heartbeat window.
	// Only active members are eligible to own units
	Active

	// Suspect is a member that missed the heartbeat window.
	// It keeps its units during the suspect grace
	Suspect

	// Departed is a member that has been confirmed gone.
	// A departed incarnation can never come back
	Departed
)

// String return a human readable status of the member
func (s MemberStatus) String() string {
	switch s {
	case Active:
		return "active"
	case Suspect:
		return "suspect"
	case Departed:
		return "departed"
	}
	return "joining"
}

// MemberSource tells where a member has been discovered from
type MemberSource uint8

const (
	// SourceRPC is a member registered through RegisterMember
	SourceRPC MemberSource = iota

	// SourcePod is a member discovered by the pod event source
	SourcePod
)

// String return a human readable source of the member
func (s MemberSource) String() string {
	if s == SourcePod {
		return "pod"
	}
	return "rpc"
}

// MemberInfo is the normalized view of a member incarnation
type MemberInfo struct {
	// ID is the member identity
	ID string

	// Incarnation disambiguates restarts of the same identity
	Incarnation string

	// Address is the network address of the member
	Address string

	// Status is the current liveness status
	Status MemberStatus

	// Source is where the member has been discovered from
	Source MemberSource

	// LastHeartbeat is the last time liveness has been observed
	LastHeartbeat time.Time

	// JoinedAt is the time the incarnation joined
	JoinedAt time.Time

	// StatusSince is the time of the last status transition
	StatusSince time.Time
}

// Key returns the identity of the incarnation
func (m MemberInfo) Key() string {
	return memberKey(m.ID, m.Incarnation)
}

// memberKey builds the identity of a member incarnation
func memberKey(id, incarnation string) string {
	return fmt.Sprintf("%s/%s", id, incarnation)
}

// EventKind is the kind of pod lifecycle event
type EventKind uint8

const (
	// EventCreated is sent when a pod has been created
	EventCreated EventKind = iota

	// EventReady is sent when a pod is ready or is still ready on resync
	EventReady

	// EventDeleted is sent when a pod has been deleted
	EventDeleted

	// EventUnreachable is sent when a pod lost its readiness
	EventUnreachable
)

// String return a human readable event kind
func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventDeleted:
		return "deleted"
	case EventUnreachable:
		return "unreachable"
	}
	return "created"
}

// MemberEvent is an external lifecycle event about a member
type MemberEvent struct {
	// Kind is the kind of event
	Kind EventKind

	// MemberID is the member identity, the pod name for pods
	MemberID string

	// Incarnation is the incarnation, the pod uid for pods
	Incarnation string

	// Address is the network address of the member
	Address string

	// Time is when the event has been observed
	Time time.Time
}

// EventSource is a capability producing member lifecycle events.
// The returned channel must be closed when ctx is done
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan MemberEvent, error)
}

// MembershipDelta holds the coalesced membership changes
// handed over to the assignment engine
type MembershipDelta struct {
	// Joined are the incarnations that became active
	Joined []string

	// Suspected are the incarnations that became suspect
	Suspected []string

	// Departed are the incarnations that departed
	Departed []string
}

// IsEmpty tells if the delta holds no change
func (d MembershipDelta) IsEmpty() bool {
	return len(d.Joined) == 0 && len(d.Suspected) == 0 && len(d.Departed) == 0
}

// Tracker maintains the liveness view of members.
// Status transitions are logged before they take effect
type Tracker struct {
	// mu protects runtime liveness, pending delta and flush timer
	mu sync.Mutex

	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// coordinator holds the shared writer and snapshot
	coordinator *Coordinator

	// heartbeats holds the last liveness observed per incarnation.
	// It's runtime state and is never logged
	heartbeats map[string]time.Time

	// since holds the time of the last status transition observed
	// by this replica per incarnation
	since map[string]time.Time

	// pending is the delta not yet handed over to the assignment engine
	pending MembershipDelta

	// flushTimer fires when the coalesce window is over
	flushTimer *time.Timer

	// ctx is the context of the current leadership term
	ctx context.Context

	// now is used to mock time in unit testing
	now func() time.Time
}
