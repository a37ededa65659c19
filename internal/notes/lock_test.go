package notes

import "testing"

func TestForTimestampStable(t *testing.T) {
	var l timestampLocks
	if l.forTimestamp(100) != l.forTimestamp(100) {
		t.Error("same timestamp mapped to different stripes")
	}
	if l.forTimestamp(5) != l.forTimestamp(5+lockStripes) {
		t.Error("timestamps a stripe count apart should share a stripe")
	}
}

func TestForTimestampNegative(t *testing.T) {
	var l timestampLocks
	mu := l.forTimestamp(-1)
	mu.Lock()
	mu.Unlock()
}
