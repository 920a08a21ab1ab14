package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordLogin(t *testing.T) {
	before := testutil.ToFloat64(LoginAttempts.WithLabelValues("clubos", "success"))
	RecordLogin("clubos", "success", 1200*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(LoginAttempts.WithLabelValues("clubos", "success")))
}

func TestRecordCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(CacheLookups.WithLabelValues("clubhub", "hit"))
	RecordCacheLookup("clubhub", "hit")
	RecordCacheLookup("clubhub", "hit")
	require.Equal(t, before+2, testutil.ToFloat64(CacheLookups.WithLabelValues("clubhub", "hit")))
}
