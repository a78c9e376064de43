package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
	})
}

func TestObserveLifecycle(t *testing.T) {
	before := testutil.ToFloat64(lifecycleActions.WithLabelValues("modify", "error"))
	ObserveLifecycle("modify", errors.New("conflict"))
	ObserveLifecycle("modify", nil)

	assert.Equal(t, before+1, testutil.ToFloat64(lifecycleActions.WithLabelValues("modify", "error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(lifecycleActions.WithLabelValues("modify", "ok")), 1.0)
}

func TestObserveNotification(t *testing.T) {
	before := testutil.ToFloat64(notifications.WithLabelValues("email", "ok"))
	ObserveNotification("email", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(notifications.WithLabelValues("email", "ok")))
}
