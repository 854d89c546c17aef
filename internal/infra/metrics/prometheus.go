package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_tasks_processed_total",
		Help: "Total number of translation tasks processed, by outcome",
	}, []string{"outcome"})

	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "translation_pipeline_stage_duration_seconds",
		Help:    "Duration of each artifact pipeline stage",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	ProviderRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_provider_retries_total",
		Help: "Total number of speech provider retries, by attempt number",
	}, []string{"attempt"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_notifications_sent_total",
		Help: "Total number of notification emails sent, by kind",
	}, []string{"kind"})

	ActiveTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "translation_active_tasks",
		Help: "Number of tasks currently being processed",
	})
)
