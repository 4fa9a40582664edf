// Package retroui draws a full-screen terminal view of a running format
// operation: a block map that fills in as regions are written, a phase
// checklist and a status block. It renders whatever the caller feeds it
// and knows nothing about FAT itself.
package retroui

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// ErrInterrupted is returned when the user asks to stop the operation.
var ErrInterrupted = errors.New("interrupted")

// UI owns the tcell screen. All Set* methods only record state; nothing
// reaches the terminal until Draw.
type UI struct {
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once

	title     string
	summary   []string
	legend    []string
	status    []string
	phases    []string
	phaseDone map[string]bool
	mapLines  []string
}

// New initializes the terminal screen and starts listening for the stop
// keys (q, Escape, Ctrl-C).
func New() (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()

	u := &UI{
		s:         s,
		stopChan:  make(chan struct{}),
		phaseDone: make(map[string]bool),
	}
	go u.eventLoop()
	return u, nil
}

// Close restores the terminal. Safe to call after Stop.
func (u *UI) Close() {
	if u.s == nil {
		return
	}
	u.s.Fini()
	u.s = nil
	// Leave the alternate screen and restore the cursor even when the
	// terminal ignored Fini.
	fmt.Print("\033[?1049l\033[?25h")
}

// Stop marks the operation as interrupted and wakes the event loop. It
// may be called from any goroutine, repeatedly.
func (u *UI) Stop() {
	u.once.Do(func() {
		close(u.stopChan)
		u.s.PostEvent(tcell.NewEventInterrupt(nil))
	})
}

// Stopped reports whether the user asked to stop.
func (u *UI) Stopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// Size returns the current screen dimensions.
func (u *UI) Size() (width, height int) {
	if u.s == nil {
		return 0, 0
	}
	return u.s.Size()
}

func (u *UI) SetTitle(t string) { u.title = t }

func (u *UI) SetSummary(lines []string) { u.summary = append([]string(nil), lines...) }

func (u *UI) SetLegend(lines []string) { u.legend = append([]string(nil), lines...) }

func (u *UI) SetStatus(lines []string) { u.status = append([]string(nil), lines...) }

func (u *UI) SetMapLines(lines []string) { u.mapLines = append([]string(nil), lines...) }

// SetPhases sets the phase checklist, in display order.
func (u *UI) SetPhases(labels []string) {
	u.phases = append([]string(nil), labels...)
}

// PhaseDone checks off a phase. The label is case-insensitive.
func (u *UI) PhaseDone(label string) {
	u.phaseDone[strings.ToLower(label)] = true
}

func putStr(s tcell.Screen, x, y int, str string) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		if x+i >= w {
			break
		}
		s.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}

// Draw repaints the whole screen from the recorded state.
func (u *UI) Draw() {
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()
	y := 0

	if u.title != "" {
		putStr(u.s, 0, y, strings.Repeat("═", w))
		putStr(u.s, (w-len(u.title))/2, y, u.title)
		y++
	}

	for _, line := range u.summary {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}
	for _, line := range u.legend {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}

	if len(u.mapLines) > 0 {
		// Reserve rows below the map for the phase and status blocks.
		avail := h - y - 7
		if avail < 1 {
			avail = 1
		}
		for i := 0; i < avail && i < len(u.mapLines) && y < h; i++ {
			runes := []rune(u.mapLines[i])
			if len(runes) > w {
				runes = runes[:w]
			}
			putStr(u.s, 0, y, string(runes))
			y++
		}
	}

	if len(u.phases) > 0 {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Phase ")
		y++
		var b strings.Builder
		for i, p := range u.phases {
			if i > 0 {
				b.WriteByte(' ')
			}
			mark := ' '
			if u.phaseDone[strings.ToLower(p)] {
				mark = '✓'
			}
			fmt.Fprintf(&b, "[%c]%s", mark, p)
		}
		putStr(u.s, 0, y, b.String())
		y++
	}

	if len(u.status) > 0 {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Status ")
		y++
		for _, line := range u.status {
			if y >= h {
				break
			}
			putStr(u.s, 0, y, line)
			y++
		}
	}

	u.s.Show()
}

func (u *UI) eventLoop() {
	for {
		select {
		case <-u.stopChan:
			return
		default:
		}
		switch ev := u.s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC,
				ev.Key() == tcell.KeyEscape,
				ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.Stop()
			}
		case *tcell.EventResize:
			u.s.Sync()
		case *tcell.EventInterrupt:
			return
		case nil:
			return
		}
	}
}
