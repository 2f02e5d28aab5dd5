package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var geocodeFailureCount = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "onboarding_api",
		Subsystem: "address",
		Name:      "geocode_failures_total",
		Help:      "Total number of coordinate geocoding failures tolerated during address resolution.",
	},
)

var uploadFailureCount = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "onboarding_api",
		Subsystem: "uploads",
		Name:      "image_upload_failures_total",
		Help:      "Total number of failed image uploads across both upload phases.",
	},
)

var submissionResultCount = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "onboarding_api",
		Subsystem: "submission",
		Name:      "results_total",
		Help:      "Session submission outcomes: full, partial, or fatal.",
	},
	[]string{"result"},
)

var businessRegistrationFailureCount = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "onboarding_api",
		Subsystem: "submission",
		Name:      "business_registration_failures_total",
		Help:      "Total number of per-business registration attempts that failed.",
	},
)
