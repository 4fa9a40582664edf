package retroui

import (
	"strings"
	"testing"
)

func TestMarkRange(t *testing.T) {
	tr := NewTracker(100, 512, nil)

	tr.MarkRange(10, 5)
	tr.MarkRange(12, 5) // overlap counted once

	if tr.count != 7 {
		t.Errorf("count = %d; want 7", tr.count)
	}
	if tr.current != 16 {
		t.Errorf("current = %d; want 16", tr.current)
	}

	// Ranges are clamped to the device.
	tr.MarkRange(98, 10)
	if tr.count != 9 {
		t.Errorf("count after clamp = %d; want 9", tr.count)
	}
}

func TestMapLines(t *testing.T) {
	tr := NewTracker(20, 512, [][2]int64{{0, 4}})
	tr.MarkRange(0, 2)

	lines := tr.MapLines(10, 2)
	if len(lines) != 2 {
		t.Fatalf("got %d lines; want 2", len(lines))
	}
	if got := lines[0]; got != "██■■■░░░░░" {
		t.Errorf("row 0 = %q", got)
	}
	if got := lines[1]; got != "░░░░░░░░░░" {
		t.Errorf("row 1 = %q", got)
	}
}

func TestMapLinesScrolls(t *testing.T) {
	// 100 blocks in a 5x2 window: the view follows the write position.
	tr := NewTracker(100, 512, nil)
	tr.MarkRange(0, 60)

	lines := tr.MapLines(5, 2)
	joined := strings.Join(lines, "")
	if len([]rune(joined)) != 10 {
		t.Fatalf("window = %q", joined)
	}
	// The last written block (59) is the final cell of the window.
	if joined != "██████████" {
		t.Errorf("window = %q; want all written", joined)
	}

	tr.MarkRange(60, 1)
	lines = tr.MapLines(5, 2)
	if got := strings.Join(lines, ""); got != "██████████" {
		t.Errorf("window after advance = %q", got)
	}
}

func TestStatusLines(t *testing.T) {
	tr := NewTracker(100, 512, nil)
	tr.MarkRange(0, 10)
	tr.SetOp("fat")

	lines := tr.StatusLines()
	if len(lines) != 4 {
		t.Fatalf("got %d status lines; want 4", len(lines))
	}
	if !strings.Contains(lines[1], "10 / 100") {
		t.Errorf("written line = %q", lines[1])
	}
	if lines[3] != "Current op: fat" {
		t.Errorf("op line = %q", lines[3])
	}
}
