package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes
const (
	outcomeAnswered = "answered"
	outcomeEmpty    = "empty"
	outcomeError    = "error"
	outcomeSkipped  = "skipped"
)

var (
	backendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regulaite_backend_attempts_total",
			Help: "Backend attempts made while resolving answers, by outcome",
		},
		[]string{"backend", "outcome"},
	)

	resolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regulaite_resolve_duration_seconds",
			Help:    "Time to resolve one answer, labelled by the backend that produced it",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 90, 120},
		},
		[]string{"backend"},
	)

	weakAnswers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regulaite_weak_answers_total",
			Help: "Answers flagged as weak",
		},
	)
)
