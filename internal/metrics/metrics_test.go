package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.MessageSent("private")
	m.MessageSent("private")
	m.MessageSent("broadcast")
	m.FirstContactRejected()

	body := scrape(t, m)
	assert.Contains(t, body, `clubhouse_messages_sent_total{kind="private"} 2`)
	assert.Contains(t, body, `clubhouse_messages_sent_total{kind="broadcast"} 1`)
	assert.Contains(t, body, `clubhouse_first_contact_rejections_total 1`)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Poll("conversation", "ok")

	assert.Contains(t, scrape(t, m), `clubhouse_polls_total{outcome="ok",scope="conversation"} 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageSent("private")
		m.FirstContactRejected()
		m.Poll("group", "ok")
		m.WSConnected()
		m.WSDisconnected()
	})
}
