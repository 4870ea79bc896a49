package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(storeConflicts.WithLabelValues("token"))
	IncStoreConflict("token")
	IncStoreConflict("token")
	assert.Equal(t, before+2, testutil.ToFloat64(storeConflicts.WithLabelValues("token")))

	before = testutil.ToFloat64(tokensIssued.WithLabelValues("true"))
	IncTokenIssued(true)
	assert.Equal(t, before+1, testutil.ToFloat64(tokensIssued.WithLabelValues("true")))

	before = testutil.ToFloat64(httpRequests.WithLabelValues("issue_token"))
	IncHTTP("issue_token")
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("issue_token")))

	before = testutil.ToFloat64(subscribers)
	AddSubscribers(3)
	AddSubscribers(-1)
	assert.Equal(t, before+2, testutil.ToFloat64(subscribers))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}
