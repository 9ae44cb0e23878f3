package protocol

import (
	"fmt"
	"testing"
)

func TestIsNoDataUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("receive PHONESTATUS: %w", ErrNoData)
	if !IsNoData(wrapped) {
		t.Fatalf("expected wrapped ErrNoData to match")
	}
	if IsNoData(fmt.Errorf("read: %w", ErrFraming)) {
		t.Fatalf("framing error must not be treated as no data")
	}
	if IsNoData(nil) {
		t.Fatalf("nil is not no data")
	}
}
