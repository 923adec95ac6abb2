package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Operation(t *testing.T) {
	r := NewRecorder()

	r.Operation("deposit", "normal", time.Now(), nil)
	r.Operation("deposit", "normal", time.Now(), nil)
	r.Operation("withdrawal", "backdated", time.Now(), errors.New("insufficient"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("deposit", "normal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("withdrawal")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.operations.WithLabelValues("withdrawal", "backdated")))
}

func TestRecorder_PostingsAndCorrections(t *testing.T) {
	r := NewRecorder()

	r.Posting("interest_posting")
	r.Posting("accrual")
	r.Correction()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.postings.WithLabelValues("interest_posting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.corrections))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Operation("deposit", "normal", time.Now(), nil)
		r.Posting("accrual")
		r.Correction()
		r.LockWait(time.Millisecond)
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.Correction()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "savings_interest_corrections_total 1"))
}
