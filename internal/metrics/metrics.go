package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/web-casa/aiui/internal/event"
)

var completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aiui_ai_completions_total",
	Help: "AI completion calls by model and outcome",
}, []string{"model", "outcome"})

var completionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "aiui_ai_completion_seconds",
	Help:    "Seconds spent waiting for an AI completion",
	Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
}, []string{"model"})

var transcriptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aiui_transcriptions_total",
	Help: "Speech-to-text calls by outcome",
}, []string{"outcome"})

var itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aiui_conversation_items_total",
	Help: "Conversation items stored by chat type",
}, []string{"chat_type"})

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// ObserveCompletion records one AI completion call.
func ObserveCompletion(model, outcome string, took time.Duration) {
	completionsTotal.WithLabelValues(model, outcome).Inc()
	completionSeconds.WithLabelValues(model).Observe(took.Seconds())
}

// ObserveTranscription records one speech-to-text call.
func ObserveTranscription(outcome string) {
	transcriptionsTotal.WithLabelValues(outcome).Inc()
}

// Subscribe counts stored items from item.created events.
func Subscribe(bus *event.Bus) {
	bus.Subscribe(event.ItemCreated, func(e event.Event) {
		chatType, _ := e.Payload["chat_type"].(string)
		if chatType == "" {
			chatType = "unknown"
		}
		itemsTotal.WithLabelValues(chatType).Inc()
	})
}

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
