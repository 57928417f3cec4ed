package kubernetes

import (
	"sync"
	"time"

	"github.com/Lord-Y/ordinator"
	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/labels"
	clientset "k8s.io/client-go/kubernetes"
)

const (
	// defaultResyncPeriod is the interval at which every pod is sent again.
	// Resync of ready pods count as liveness
	defaultResyncPeriod = 30 * time.Second

	// minResyncPeriod is the lowest resync period honored by informers
	minResyncPeriod = time.Second

	// defaultBufferSize is the capacity of the event channel
	defaultBufferSize = 256
)

// Options holds config of the pod source
type Options struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	// Client is the kubernetes client. It's required
	Client clientset.Interface

	// Namespace is the namespace of the pods to watch. It's required
	Namespace string

	// LabelSelector filters the pods to watch
	LabelSelector string

	// MemberPort is appended to the pod ip to build the member address
	MemberPort int

	// LivenessWindow is the time a member can stay without event before
	// being suspected by the coordinator.
	// When set, ResyncPeriod defaults to half of it and must stay below it
	LivenessWindow time.Duration

	// ResyncPeriod is the interval at which every pod is sent again.
	// Default to half of LivenessWindow or 30s
	ResyncPeriod time.Duration

	// BufferSize is the capacity of the event channel.
	// Default to 256
	BufferSize int
}

// PodSource produces member events from pods of a namespace.
// The pod name is the member id, the pod uid is the incarnation
type PodSource struct {
	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// options holds the config
	options Options

	// selector filters pods on the client side
	selector labels.Selector

	// now is used to mock time in unit testing
	now func() time.Time
}

// subscription holds the channel of a single subscriber
type subscription struct {
	// mu protects closed
	mu sync.Mutex

	// events receives member events
	events chan ordinator.MemberEvent

	// closed tells if events has been closed
	closed bool
}
