package progressbar

import (
	"bytes"
	"strings"
	"testing"
)

func TestManualProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewManualProgressBarTo(&buf, "rollout", 10, 4)

	for i := 0; i < 6; i++ {
		p.Increment()
	}
	if p.Progress() != 1 {
		t.Errorf("progress should saturate at 1, have %v", p.Progress())
	}

	p.Display()
	out := buf.String()
	if !strings.Contains(out, "rollout |") {
		t.Errorf("label missing from %q", out)
	}
	if !strings.Contains(out, "100.00%") {
		t.Errorf("percentage missing from %q", out)
	}
}
