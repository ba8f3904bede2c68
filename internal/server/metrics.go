package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeRecorded  = "recorded"
	outcomeRejected  = "rejected"
	outcomeThrottled = "throttled"
	outcomeFailed    = "failed"
)

var (
	beaconsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "offergoat",
		Name:      "beacons_total",
		Help:      "Beacons received, by kind (visit, event) and outcome.",
	}, []string{"kind", "outcome"})

	assignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "offergoat",
		Name:      "assignments_total",
		Help:      "Variant assignments served, by experiment and variant.",
	}, []string{"experiment", "variant"})
)

// beaconKind is the last path segment of a beacon route.
func beaconKind(r *http.Request) string {
	return r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
}
