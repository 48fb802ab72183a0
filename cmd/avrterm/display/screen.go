// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package display

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

const (
	DefaultRows = 24
	DefaultCols = 80

	tabWidth = 8
)

// Screen draws a byte stream onto a tcell screen the way a dumb terminal
// would: one byte never takes more than its own cells, the cursor wraps at
// the right edge and the screen scrolls at the bottom.
type Screen struct {
	screen tcell.Screen
	style  tcell.Style
	rows   int
	cols   int
	row    int
	col    int
}

func NewScreen(screen tcell.Screen) *Screen {
	s := &Screen{
		screen: screen,
		style:  tcell.StyleDefault,
	}
	s.resize()
	return s
}

// resize picks up the current size of the underlying screen, keeping the
// cursor inside it.
func (s *Screen) resize() {
	cols, rows := s.screen.Size()
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	s.rows, s.cols = rows, cols
	if s.row >= rows {
		s.row = rows - 1
	}
	if s.col >= cols {
		s.col = cols - 1
	}
	s.screen.Sync()
	s.show()
}

// Clear blanks the screen and homes the cursor.
func (s *Screen) Clear() {
	s.screen.Clear()
	s.row, s.col = 0, 0
	s.show()
}

func (s *Screen) Size() (rows, cols int) {
	return s.rows, s.cols
}

func (s *Screen) Cursor() (row, col int) {
	return s.row, s.col
}

// Line returns the content of the given row without trailing blanks.
func (s *Screen) Line(row int) string {
	if row < 0 || row >= s.rows {
		return ""
	}
	var sb strings.Builder
	for x := 0; x < s.cols; x++ {
		sb.WriteRune(s.cell(x, row))
	}
	return strings.TrimRight(sb.String(), " ")
}

// Put writes b at the cursor and advances it. Line feeds, carriage returns,
// backspaces and tabs move the cursor. Control bytes are drawn in caret
// notation and bytes with the high bit set in meta notation, as curses
// does.
func (s *Screen) Put(b byte) {
	s.put(b)
	s.show()
}

func (s *Screen) put(b byte) {
	switch {
	case b == '\n':
		for x := s.col; x < s.cols; x++ {
			s.setCell(x, s.row, ' ')
		}
		s.lineFeed()
	case b == '\r':
		s.col = 0
	case b == '\b':
		if s.col > 0 {
			s.col--
		}
	case b == '\t':
		for {
			s.putCell(' ')
			if s.col%tabWidth == 0 {
				break
			}
		}
	case b >= 0x80:
		s.putCell('M')
		s.putCell('-')
		s.put(b & 0x7F)
	case b < 0x20 || b == 0x7F:
		s.putCell('^')
		s.putCell(rune(b ^ 0x40))
	default:
		s.putCell(rune(b))
	}
}

// Backspace moves the cursor one column left and deletes the character
// there, pulling the rest of the line one column left.
func (s *Screen) Backspace() {
	if s.col > 0 {
		s.col--
	}
	for x := s.col; x < s.cols-1; x++ {
		s.setCell(x, s.row, s.cell(x+1, s.row))
	}
	s.setCell(s.cols-1, s.row, ' ')
	s.show()
}

func (s *Screen) putCell(r rune) {
	s.setCell(s.col, s.row, r)
	s.col++
	if s.col == s.cols {
		s.lineFeed()
	}
}

func (s *Screen) lineFeed() {
	s.col = 0
	if s.row == s.rows-1 {
		s.scroll()
	} else {
		s.row++
	}
}

func (s *Screen) scroll() {
	for y := 0; y < s.rows-1; y++ {
		for x := 0; x < s.cols; x++ {
			s.setCell(x, y, s.cell(x, y+1))
		}
	}
	for x := 0; x < s.cols; x++ {
		s.setCell(x, s.rows-1, ' ')
	}
}

func (s *Screen) cell(x, y int) rune {
	r, _, _, _ := s.screen.GetContent(x, y)
	return r
}

func (s *Screen) setCell(x, y int, r rune) {
	s.screen.SetContent(x, y, r, nil, s.style)
}

func (s *Screen) show() {
	s.screen.ShowCursor(s.col, s.row)
	s.screen.Show()
}
