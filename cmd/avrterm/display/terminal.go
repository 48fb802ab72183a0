// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package display

import (
	"fmt"
	"os"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/golang/glog"
	"golang.org/x/term"
)

// Byte sequences a VT100 sends for keys that have no byte of their own.
var keySequences = map[tcell.Key]string{
	tcell.KeyUp:     "\x1b[A",
	tcell.KeyDown:   "\x1b[B",
	tcell.KeyRight:  "\x1b[C",
	tcell.KeyLeft:   "\x1b[D",
	tcell.KeyHome:   "\x1b[H",
	tcell.KeyEnd:    "\x1b[F",
	tcell.KeyDelete: "\x1b[3~",
}

// Terminal is a full-screen surface on the controlling terminal: keys are
// captured one at a time without echo and output goes through a Screen.
//
// Everything but the event pump runs on the goroutine calling Key, so the
// screen is never touched concurrently.
type Terminal struct {
	*Screen

	screen    tcell.Screen
	events    chan tcell.Event
	quit      chan struct{}
	pending   []byte
	interrupt chan struct{}
	intOnce   sync.Once
	closeOnce sync.Once
}

// Open takes over the controlling terminal. Close must be called to give it
// back.
func Open() (*Terminal, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("the console needs an interactive terminal")
	}
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return newTerminal(screen)
}

func newTerminal(screen tcell.Screen) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	t := &Terminal{
		Screen:    NewScreen(screen),
		screen:    screen,
		events:    make(chan tcell.Event, 256),
		quit:      make(chan struct{}),
		interrupt: make(chan struct{}),
	}
	t.Clear()
	go screen.ChannelEvents(t.events, t.quit)
	return t, nil
}

// Key returns a pending keypress without blocking. Keys that stand for
// several bytes are handed out one byte per call.
func (t *Terminal) Key() (byte, bool) {
	t.drainEvents()
	if len(t.pending) == 0 {
		return 0, false
	}
	b := t.pending[0]
	t.pending = t.pending[1:]
	return b, true
}

func (t *Terminal) drainEvents() {
	for {
		select {
		case ev, ok := <-t.events:
			if !ok {
				return
			}
			t.handle(ev)
		default:
			return
		}
	}
}

func (t *Terminal) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyCtrlC {
			t.intOnce.Do(func() { close(t.interrupt) })
			return
		}
		t.pending = append(t.pending, keyBytes(ev)...)
	case *tcell.EventResize:
		t.Screen.resize()
		rows, cols := t.Size()
		glog.V(1).Infof("terminal resized to %dx%d", cols, rows)
	}
}

func keyBytes(ev *tcell.EventKey) []byte {
	var res []byte
	if ev.Modifiers()&tcell.ModAlt != 0 {
		res = append(res, 0x1b)
	}
	switch k := ev.Key(); {
	case k == tcell.KeyRune:
		return append(res, string(ev.Rune())...)
	case k < tcell.KeyRune:
		return append(res, byte(k))
	default:
		seq, ok := keySequences[k]
		if !ok {
			return nil
		}
		return append(res, seq...)
	}
}

// Interrupted is closed once the operator types Ctrl-C.
func (t *Terminal) Interrupted() <-chan struct{} {
	return t.interrupt
}

// Close stops the event pump and restores the original terminal mode. Only
// the first call has an effect.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		close(t.quit)
		t.screen.Fini()
	})
	return nil
}
