// Package blockview renders a fullscreen terminal map of a NAND
// device, one glyph per block, with a status area below. It is used
// both as a static layout viewer and as the live progress display of
// a bulk restore.
package blockview

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// ErrInterrupted is returned when the user requests to stop the
// operation under way.
var ErrInterrupted = errors.New("interrupted")

// Class is the display classification of one block.
type Class uint8

const (
	Free Class = iota
	Used
	System
	Bad
	Written
)

func glyph(c Class) rune {
	switch c {
	case Used, Written:
		return '█'
	case System:
		return '■'
	case Bad:
		return '✗'
	default:
		return '░'
	}
}

const legendLine = "Legend:  ░ free   █ used/written   ■ system   ✗ bad | Q to quit"

// View is a fullscreen block map. Draw is only safe from the goroutine
// that owns the view; Close and RequestStop may be called from any
// goroutine, any number of times.
type View struct {
	mu       sync.Mutex
	s        tcell.Screen // nil once closed
	stopChan chan struct{}
	once     sync.Once

	title    string
	summary  []string
	status   []string
	classes  []Class
	lastMark int
}

// New initializes the terminal screen and starts the key event loop.
func New() (*View, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	v := &View{
		s:        s,
		stopChan: make(chan struct{}),
		lastMark: -1,
	}
	go v.eventLoop(s)
	return v, nil
}

// screen returns the live screen, or nil after Close.
func (v *View) screen() tcell.Screen {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.s
}

// Close restores the terminal. Idempotent; the event loop drains on
// its own reference once Fini makes PollEvent return nil.
func (v *View) Close() {
	v.mu.Lock()
	s := v.s
	v.s = nil
	v.mu.Unlock()
	if s == nil {
		return
	}
	s.Fini()
	fmt.Print("\033[?1049l\033[?25h")
}

// RequestStop signals that the user wants the current operation
// stopped. Safe to call more than once.
func (v *View) RequestStop() {
	v.once.Do(func() {
		close(v.stopChan)
		if s := v.screen(); s != nil {
			s.PostEvent(tcell.NewEventInterrupt(nil))
		}
	})
}

// IsStopped reports whether a stop was requested.
func (v *View) IsStopped() bool {
	select {
	case <-v.stopChan:
		return true
	default:
		return false
	}
}

// Wait blocks until a stop is requested.
func (v *View) Wait() {
	<-v.stopChan
}

// SetTitle sets the top banner text.
func (v *View) SetTitle(t string) { v.title = t }

// SetSummary sets the lines shown between the title and the map.
func (v *View) SetSummary(lines []string) {
	v.summary = append([]string(nil), lines...)
}

// SetStatus sets the lines shown below the map.
func (v *View) SetStatus(lines []string) {
	v.status = append([]string(nil), lines...)
}

// SetClasses installs the per-block classification, one entry per
// device block.
func (v *View) SetClasses(classes []Class) {
	v.classes = append([]Class(nil), classes...)
}

// Mark reclassifies a single block, typically to Written as a restore
// progresses; the map scrolls to keep the marked block visible.
func (v *View) Mark(index uint32, c Class) {
	if int(index) < len(v.classes) {
		v.classes[index] = c
		v.lastMark = int(index)
	}
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

// Draw redraws the whole view from current state.
func (v *View) Draw() {
	s := v.screen()
	if s == nil {
		return
	}
	s.Clear()
	w, h := s.Size()
	y := 0

	if v.title != "" {
		putStr(s, 0, y, strings.Repeat("═", w))
		putStr(s, (w-len(v.title))/2, y, v.title)
		y++
	}
	for _, line := range v.summary {
		if y >= h {
			break
		}
		putStr(s, 0, y, line)
		y++
	}
	if y < h {
		putStr(s, 0, y, legendLine)
		y++
	}

	// Block map, scrolled so the most recently marked block is visible.
	avail := h - y - 2 - len(v.status)
	if avail < 1 {
		avail = 1
	}
	cells := w * avail
	start := 0
	if len(v.classes) > cells && v.lastMark >= cells {
		start = v.lastMark - cells + 1
		if start+cells > len(v.classes) {
			start = len(v.classes) - cells
		}
	}
	for row := 0; row < avail && y < h; row++ {
		var b strings.Builder
		b.Grow(w)
		for col := 0; col < w; col++ {
			idx := start + row*w + col
			if idx >= len(v.classes) {
				break
			}
			b.WriteRune(glyph(v.classes[idx]))
		}
		if b.Len() == 0 {
			break
		}
		putStr(s, 0, y, b.String())
		y++
	}

	if len(v.status) > 0 && y < h {
		putStr(s, 0, y, strings.Repeat("─", w))
		putStr(s, 2, y, " Status ")
		y++
		for _, line := range v.status {
			if y >= h {
				break
			}
			putStr(s, 0, y, line)
			y++
		}
	}

	s.Show()
}

// eventLoop owns its screen reference for its whole lifetime, so a
// concurrent Close never yanks the screen out from under PollEvent.
func (v *View) eventLoop(s tcell.Screen) {
	for {
		select {
		case <-v.stopChan:
			return
		default:
		}
		ev := s.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC:
				v.RequestStop()
			case ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				v.RequestStop()
			case ev.Key() == tcell.KeyEscape:
				v.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
			return
		case nil:
			return
		}
	}
}
