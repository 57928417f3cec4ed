package ordinator

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// register registers the collector or returns the one already registered
// with the same description so multiple instances can share collectors
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if registerer == nil {
		return collector
	}
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return collector
}

// newMetrics initialize Prometheus metrics for monitoring node.
func newMetrics(nodeId, namespace string, registerer prometheus.Registerer) *metrics {
	return &metrics{
		id: nodeId,
		ready: register(registerer, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "ready",
				Help:      "Indicates if the node serves authoritative answers",
			},
			[]string{"node_id"},
		)),
		leader: register(registerer, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "leader",
				Help:      "Indicates if the node holds the writer lease",
			},
			[]string{"node_id"},
		)),
		healthy: register(registerer, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "log_healthy",
				Help:      "Indicates if the log writer path is healthy",
			},
			[]string{"node_id"},
		)),
		members: register(registerer, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "members",
				Help:      "Indicates how many members are in each status",
			},
			[]string{"node_id", "status"},
		)),
		clusterEpoch: register(registerer, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "cluster_epoch",
				Help:      "Indicates the current cluster epoch",
			},
			[]string{"node_id"},
		)),
		lastSequence: register(registerer, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "log_last_sequence",
				Help:      "Indicates the last committed sequence of the log",
			},
			[]string{"node_id"},
		)),
		watchers: register(registerer, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "assignment_watchers",
				Help:      "Indicates how many assignment watchers are connected",
			},
			[]string{"node_id"},
		)),
		appends: register(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "log_appends_total",
				Help:      "Number of committed records per kind",
			},
			[]string{"node_id", "kind"},
		)),
		appendFailures: register(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "log_append_failures_total",
				Help:      "Number of appends that failed after all retries",
			},
			[]string{"node_id"},
		)),
		reassignments: register(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ordinator",
				Name:      "reassignments_total",
				Help:      "Number of units that changed owner",
			},
			[]string{"node_id"},
		)),
		appendDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ordinator",
			Name:      "log_append_duration_seconds",
			Help:      "Indicates how much time it took to persist a batch of records",
		},
			[]string{"node_id"},
		)),
		replayDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ordinator",
			Name:      "log_replay_duration_seconds",
			Help:      "Indicates how much time it took to replay the log",
		},
			[]string{"node_id"},
		)),
	}
}

// setGauge sets a boolean gauge for the current node
func (m *metrics) setGauge(gauge *prometheus.GaugeVec, value bool) {
	if value {
		gauge.With(prometheus.Labels{"node_id": m.id}).Set(1)
		return
	}
	gauge.With(prometheus.Labels{"node_id": m.id}).Set(0)
}

// setMembers sets the amount of members in each status
func (m *metrics) setMembers(count map[MemberStatus]int) {
	for _, status := range []MemberStatus{Joining, Active, Suspect, Departed} {
		m.members.With(prometheus.Labels{"node_id": m.id, "status": status.String()}).Set(float64(count[status]))
	}
}

// setSnapshot updates gauges derived from the published snapshot
func (m *metrics) setSnapshot(snapshot *Snapshot) {
	m.clusterEpoch.With(prometheus.Labels{"node_id": m.id}).Set(float64(snapshot.Epoch))
	count := make(map[MemberStatus]int)
	for _, member := range snapshot.Members {
		count[member.Status]++
	}
	m.setMembers(count)
}

// committed records appended records
func (m *metrics) committed(records []*Record) {
	for _, record := range records {
		m.appends.With(prometheus.Labels{"node_id": m.id, "kind": record.Kind.String()}).Inc()
	}
	if len(records) > 0 {
		m.lastSequence.With(prometheus.Labels{"node_id": m.id}).Set(float64(records[len(records)-1].Sequence))
	}
}

// timeSince will set an histogram showing how much time it took to perform the provided operation
func (m *metrics) timeSince(operation string, start time.Time) {
	elapsed := float64(time.Since(start)) / float64(time.Second)
	switch operation {
	case "append":
		m.appendDuration.With(prometheus.Labels{"node_id": m.id}).Observe(elapsed)
	case "replay":
		m.replayDuration.With(prometheus.Labels{"node_id": m.id}).Observe(elapsed)
	}
}
