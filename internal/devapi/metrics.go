package devapi

import "github.com/prometheus/client_golang/prometheus"

var requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "activitysync",
	Subsystem: "devapi",
	Name:      "requests_total",
	Help:      "Number of development API requests grouped by route and status code.",
}, []string{"route", "status"})

func init() {
	prometheus.MustRegister(requestCounter)
}
