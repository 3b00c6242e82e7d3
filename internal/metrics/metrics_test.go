package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	NotificationsWritten.Inc()
	HTTPRequests.WithLabelValues("GET", "/api/posts", "200").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "socialfeed_notifications_written_total"))
	assert.True(t, strings.Contains(body, `route="/api/posts"`))
}

func TestActivityCounter(t *testing.T) {
	before := testutil.ToFloat64(ActivitiesPublished.WithLabelValues("post_liked", "ok"))
	ActivitiesPublished.WithLabelValues("post_liked", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ActivitiesPublished.WithLabelValues("post_liked", "ok")))
}
