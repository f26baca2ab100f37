package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Signups counts successful account creations.
	Signups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warbler_signups_total",
		Help: "Total number of accounts created",
	})

	// FollowEvents counts follow graph mutations by action (follow, unfollow).
	FollowEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_follow_events_total",
		Help: "Total follow graph mutations by action",
	}, []string{"action"})

	// LikeEvents counts like mutations by action (like, unlike).
	LikeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_like_events_total",
		Help: "Total like mutations by action",
	}, []string{"action"})

	// MessageEvents counts message mutations by action (create, delete).
	MessageEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_messages_total",
		Help: "Total message mutations by action",
	}, []string{"action"})

	// FeedSize observes the number of messages returned per assembled feed.
	FeedSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "warbler_feed_size",
		Help:    "Number of messages per assembled feed",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 75, 100},
	})
)
