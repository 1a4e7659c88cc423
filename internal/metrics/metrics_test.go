package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.SubscriptionOpened()
	m.SubscriptionClosed()
	m.ViewPublished()
	m.Mutation("like", nil)
	m.WSConnected()
	m.WSDisconnected()
	m.ObserveHTTP("GET", "/rooms/{id}", 200, time.Millisecond)
}

func TestExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SubscriptionOpened()
	m.SubscriptionOpened()
	m.SubscriptionClosed()
	m.Mutation("like", nil)
	m.Mutation("like", errors.New("boom"))
	m.Mutation("like", nil)
	m.ViewPublished()
	m.ObserveHTTP("GET", "/rooms/{id}", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, "qaroom_room_subscriptions 1")
	assert.Contains(t, body, `qaroom_mutations_total{op="like",result="ok"} 2`)
	assert.Contains(t, body, `qaroom_mutations_total{op="like",result="error"} 1`)
	assert.Contains(t, body, "qaroom_room_views_published_total 1")
	assert.Contains(t, body, `qaroom_http_request_duration_seconds_count{code="200",method="GET",route="/rooms/{id}"} 1`)
}
