package changefeed

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activitysync",
		Subsystem: "changefeed",
		Name:      "events_published_total",
		Help:      "Number of cache change events written to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activitysync",
		Subsystem: "changefeed",
		Name:      "events_failed_total",
		Help:      "Number of cache change events lost to Kafka write failures.",
	})

	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activitysync",
		Subsystem: "changefeed",
		Name:      "events_dropped_total",
		Help:      "Number of cache change events dropped because the buffer was full or closed.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activitysync",
		Subsystem: "changefeed",
		Name:      "batch_duration_seconds",
		Help:      "Time spent writing one batch of change events.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(publishedCounter, failedCounter, droppedCounter, batchDuration)
}
