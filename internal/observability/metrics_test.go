package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordUnit("command", "frame")
	RecordFramingError("command")
	RecordReceiveTimeout("raw")
	RecordQueueDrop("debug")
	RecordFileOp("open", "ok", 12*time.Millisecond)
	RecordTransfer("upload", 1500)

	before := testutil.ToFloat64(transferBytes.WithLabelValues("download"))
	RecordTransfer("download", 600)
	if got := testutil.ToFloat64(transferBytes.WithLabelValues("download")); got != before+600 {
		t.Fatalf("download bytes: got %v want %v", got, before+600)
	}
}
