package ordinator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds Prometheus metrics for monitoring the coordinator and its log.
type metrics struct {
	// id is the node ID used as a label for the metrics
	id string

	// ready is a gauge that indicates if the node serves authoritative answers
	ready *prometheus.GaugeVec

	// leader is a gauge that indicates if the node holds the writer lease
	leader *prometheus.GaugeVec

	// healthy is a gauge that indicates if the log writer path is healthy
	healthy *prometheus.GaugeVec

	// members is a gauge that indicates how many members are in each status
	members *prometheus.GaugeVec

	// clusterEpoch is a gauge that indicates the current cluster epoch
	clusterEpoch *prometheus.GaugeVec

	// lastSequence is a gauge that indicates the last committed sequence
	lastSequence *prometheus.GaugeVec

	// watchers is a gauge that indicates how many assignment watchers are connected
	watchers *prometheus.GaugeVec

	// appends is a counter of committed records per kind
	appends *prometheus.CounterVec

	// appendFailures is a counter of appends that failed after all retries
	appendFailures *prometheus.CounterVec

	// reassignments is a counter of units that changed owner
	reassignments *prometheus.CounterVec

	// appendDuration is an histogram that indicates how much time it took to persist a batch
	appendDuration *prometheus.HistogramVec

	// replayDuration is an histogram that indicates how much time it took to replay the log
	replayDuration *prometheus.HistogramVec
}
