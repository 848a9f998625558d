package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/web-casa/aiui/internal/event"
	"go.uber.org/zap"
)

func TestObserveCompletion(t *testing.T) {
	before := testutil.ToFloat64(completionsTotal.WithLabelValues("metrics-test", OutcomeOK))
	ObserveCompletion("metrics-test", OutcomeOK, 250*time.Millisecond)
	ObserveCompletion("metrics-test", OutcomeOK, time.Second)
	assert.Equal(t, before+2, testutil.ToFloat64(completionsTotal.WithLabelValues("metrics-test", OutcomeOK)))
}

func TestObserveTranscription(t *testing.T) {
	before := testutil.ToFloat64(transcriptionsTotal.WithLabelValues(OutcomeEmpty))
	ObserveTranscription(OutcomeEmpty)
	assert.Equal(t, before+1, testutil.ToFloat64(transcriptionsTotal.WithLabelValues(OutcomeEmpty)))
}

func TestSubscribeCountsItems(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	Subscribe(bus)

	noa := testutil.ToFloat64(itemsTotal.WithLabelValues("noa"))
	unknown := testutil.ToFloat64(itemsTotal.WithLabelValues("unknown"))

	bus.Publish(event.Event{Type: event.ItemCreated, Payload: map[string]interface{}{"chat_type": "noa"}})
	bus.Publish(event.Event{Type: event.ItemCreated, Payload: map[string]interface{}{}})
	bus.Publish(event.Event{Type: event.ThreadDeleted, Payload: map[string]interface{}{"chat_type": "noa"}})

	assert.Equal(t, noa+1, testutil.ToFloat64(itemsTotal.WithLabelValues("noa")))
	assert.Equal(t, unknown+1, testutil.ToFloat64(itemsTotal.WithLabelValues("unknown")))
}

func TestHandlerExposesCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ObserveTranscription(OutcomeOK)

	r := gin.New()
	r.GET("/metrics", Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `aiui_transcriptions_total{outcome="ok"}`))
}
