package retroui

import (
	"fmt"
	"strings"
	"time"
)

// Tracker records which device blocks have been written and turns that
// into the block-map and status lines the UI renders. It is not safe for
// concurrent use; the format loop owns it.
type Tracker struct {
	written    []bool
	total      int64
	current    int64
	count      int64
	blockSize  int64
	started    time.Time
	currentOp  string
	metaRanges [][2]int64
}

// NewTracker tracks a device of total blocks of blockSize bytes.
// metaRanges lists the filesystem metadata regions as inclusive block
// ranges; the map draws them distinctly while they are still unwritten.
func NewTracker(total, blockSize int64, metaRanges [][2]int64) *Tracker {
	return &Tracker{
		written:    make([]bool, total),
		total:      total,
		blockSize:  blockSize,
		started:    time.Now(),
		metaRanges: metaRanges,
	}
}

// MarkRange records count blocks starting at start as written.
func (tr *Tracker) MarkRange(start, count int64) {
	end := start + count
	if end > tr.total {
		end = tr.total
	}
	for i := start; i < end; i++ {
		if i >= 0 && !tr.written[i] {
			tr.written[i] = true
			tr.count++
		}
	}
	if end > 0 {
		tr.current = end - 1
	}
}

// SetOp names the operation shown in the status block.
func (tr *Tracker) SetOp(op string) {
	tr.currentOp = op
}

func (tr *Tracker) inMeta(blk int64) bool {
	for _, r := range tr.metaRanges {
		if blk >= r[0] && blk <= r[1] {
			return true
		}
	}
	return false
}

// MapLines renders the block map into rows for a w by h cell area. When
// the device has more blocks than cells the window scrolls to follow the
// most recently written block.
func (tr *Tracker) MapLines(w, h int) []string {
	if tr.total <= 0 || w <= 0 || h <= 0 {
		return nil
	}
	cells := int64(w * h)

	start := int64(0)
	if tr.total > cells {
		if tr.current >= cells-1 {
			start = tr.current - (cells - 1)
		}
		if start+cells > tr.total {
			start = tr.total - cells
		}
		if start < 0 {
			start = 0
		}
	}

	lines := make([]string, 0, h)
	for row := 0; row < h; row++ {
		var b strings.Builder
		b.Grow(w)
		for col := 0; col < w; col++ {
			blk := start + int64(row*w+col)
			if blk >= tr.total {
				break
			}
			switch {
			case tr.written[blk]:
				b.WriteRune('█')
			case tr.inMeta(blk):
				b.WriteRune('■')
			default:
				b.WriteRune('░')
			}
		}
		lines = append(lines, b.String())
	}
	return lines
}

func humanRate(bps float64) string {
	switch {
	case bps >= 1<<20:
		return fmt.Sprintf("%.1fM", bps/(1<<20))
	case bps >= 1<<10:
		return fmt.Sprintf("%.1fK", bps/(1<<10))
	}
	return fmt.Sprintf("%.0fB", bps)
}

// StatusLines builds the status block: position, written count, elapsed
// time, write rate and the current operation.
func (tr *Tracker) StatusLines() []string {
	elapsed := time.Since(tr.started).Truncate(time.Second)

	var rate float64
	if secs := time.Since(tr.started).Seconds(); secs > 0 {
		rate = float64(tr.count*tr.blockSize) / secs
	}

	eta := "—"
	if rate > 0 {
		remain := float64((tr.total - tr.count) * tr.blockSize)
		eta = time.Duration(remain / rate * float64(time.Second)).Truncate(time.Second).String()
	}

	return []string{
		fmt.Sprintf("Block: %06d", tr.current),
		fmt.Sprintf("Written: %d / %d blocks", tr.count, tr.total),
		fmt.Sprintf("Elapsed: %s   Rate: %s/s   ETA: %s", elapsed, humanRate(rate), eta),
		"Current op: " + tr.currentOp,
	}
}

// Refresh pushes the tracker's current map and status into the UI and
// redraws. Called from the progress path, so it throttles nothing; the
// caller decides how often to refresh.
func (tr *Tracker) Refresh(u *UI) {
	w, h := u.Size()
	if w > 0 && h > 0 {
		// Mirror the layout in Draw: rows above and below the map.
		mapRows := h - 7
		if mapRows < 1 {
			mapRows = 1
		}
		u.SetMapLines(tr.MapLines(w, mapRows))
	}
	u.SetStatus(tr.StatusLines())
	u.Draw()
}
