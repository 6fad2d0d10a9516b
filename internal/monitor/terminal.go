package monitor

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const (
	hideCursor = "\033[?25l"
	showCursor = "\033[?25h"
	clearHome  = "\033[2J\033[H"

	fallbackWidth  = 80
	fallbackHeight = 24
)

// Terminal owns the operator console: single-keypress input on stdin and the
// dimensions of stdout.
type Terminal struct {
	in    *os.File
	out   *os.File
	state *term.State
	keys  <-chan byte
}

// OpenTerminal switches in to raw mode when it is a terminal so keys arrive
// without waiting for Enter. On anything else no keys are delivered.
func OpenTerminal(in, out *os.File) (*Terminal, error) {
	t := &Terminal{in: in, out: out}
	if !term.IsTerminal(int(in.Fd())) {
		return t, nil
	}
	state, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		return nil, fmt.Errorf("enable raw mode: %w", err)
	}
	t.state = state
	t.keys = ReadKeys(in)
	fmt.Fprint(out, hideCursor)
	return t, nil
}

// Keys delivers every byte typed on the console; nil when input is not a terminal.
func (t *Terminal) Keys() <-chan byte { return t.keys }

func (t *Terminal) Width() int {
	w, _ := t.Size()
	return w
}

// Size reports the console dimensions, falling back to 80x24.
func (t *Terminal) Size() (int, int) {
	if t.out == nil {
		return fallbackWidth, fallbackHeight
	}
	w, h, err := term.GetSize(int(t.out.Fd()))
	if err != nil || w <= 0 {
		return fallbackWidth, fallbackHeight
	}
	return w, h
}

// Restore leaves raw mode and shows the cursor again.
func (t *Terminal) Restore() error {
	if t.state == nil {
		return nil
	}
	fmt.Fprint(t.out, showCursor)
	err := term.Restore(int(t.in.Fd()), t.state)
	t.state = nil
	return err
}

// ReadKeys pumps bytes from r onto a channel until r fails. The goroutine
// blocks in Read, so it lives until the process exits or r is closed.
func ReadKeys(r io.Reader) <-chan byte {
	ch := make(chan byte, 16)
	go func() {
		defer close(ch)
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n == 1 {
				ch <- buf[0]
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}
