package matching

import (
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    feedbackEventsTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "matching_feedback_events_total",
            Help: "Total number of feedback events by interaction and outcome",
        },
        []string{"interaction", "outcome"},
    )

    matchesTotal = promauto.NewCounter(
        prometheus.CounterOpts{
            Name: "matching_matches_total",
            Help: "Total number of mutual matches created",
        },
    )

    preferenceConflictsTotal = promauto.NewCounter(
        prometheus.CounterOpts{
            Name: "matching_preference_conflicts_total",
            Help: "Optimistic update conflicts on preference vectors",
        },
    )

    compatibilityScores = promauto.NewHistogram(
        prometheus.HistogramOpts{
            Name:    "matching_compatibility_scores",
            Help:    "Distribution of compatibility scores",
            Buckets: prometheus.LinearBuckets(0, 10, 11),
        },
    )

    recommendationSize = promauto.NewHistogram(
        prometheus.HistogramOpts{
            Name:    "matching_recommendation_results",
            Help:    "Number of candidates returned per recommendation request",
            Buckets: prometheus.LinearBuckets(0, 5, 11),
        },
    )

    responseTime = promauto.NewHistogramVec(
        prometheus.HistogramOpts{
            Name: "matching_response_time_seconds",
            Help: "Time spent serving matching operations",
        },
        []string{"action"},
    )
)

func RecordFeedback(interaction InteractionType, outcome string) {
    feedbackEventsTotal.WithLabelValues(string(interaction), outcome).Inc()
}

func RecordMatch() {
    matchesTotal.Inc()
}

func RecordPreferenceConflict() {
    preferenceConflictsTotal.Inc()
}

func RecordCompatibilityScore(score float64) {
    compatibilityScores.Observe(score)
}

func RecordRecommendationSize(n int) {
    recommendationSize.Observe(float64(n))
}

func RecordResponseTime(action string, duration time.Duration) {
    responseTime.WithLabelValues(action).Observe(duration.Seconds())
}
