package controllers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionStartedCount = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "onboarding_api",
		Subsystem: "wizard",
		Name:      "sessions_started_total",
		Help:      "Total number of onboarding sessions opened, by session kind.",
	},
	[]string{"kind"},
)

var stepBlockedCount = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "onboarding_api",
		Subsystem: "wizard",
		Name:      "step_blocked_total",
		Help:      "Total number of advance attempts rejected by step validation, by step.",
	},
	[]string{"step"},
)
