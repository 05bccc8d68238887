package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var captured string
	SetLogger(func(format string, v ...interface{}) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("tick %d", 7)
	if captured != "tick 7" {
		t.Errorf("captured = %q, want %q", captured, "tick 7")
	}

	// nil installs a no-op logger without panicking
	SetLogger(nil)
	Logf("dropped")
}
