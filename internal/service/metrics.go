package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// copiesCreated counts personalized copies by kind (week, session)
	copiesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_copies_created_total",
		Help: "Personalized copies created, by kind",
	}, []string{"kind"})

	// copiesDeleted counts copies removed, by kind and reason
	copiesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_copies_deleted_total",
		Help: "Personalized copies deleted, by kind and reason",
	}, []string{"kind", "reason"})

	propagationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_propagation_errors_total",
		Help: "Per-item propagation failures, by source",
	}, []string{"source"})

	// indexFallbacks counts provenance queries served by a full scan
	indexFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_provenance_scan_fallback_total",
		Help: "Provenance queries that fell back to a collection scan",
	}, []string{"query"})

	weekCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_week_cache_lookups_total",
		Help: "Resolved week cache lookups, by result",
	}, []string{"result"})

	workflowSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_workflow_steps_total",
		Help: "Saga steps executed, by workflow kind and outcome",
	}, []string{"kind", "outcome"})
)
