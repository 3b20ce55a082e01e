package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

// Console is a KeySink that prints key traffic instead of injecting it.
// Used by `keydiald -trace-events` to verify bindings without touching
// /dev/uinput.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
}

var _ keydial.KeySink = (*Console)(nil)

func NewConsole(w io.Writer) *Console {
	return &Console{w: w, start: time.Now()}
}

func (c *Console) Press(key string) error {
	return c.emit("press", key)
}

func (c *Console) Release(key string) error {
	return c.emit("release", key)
}

func (c *Console) emit(verb, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "[%8.3f] %-7s %s\n", time.Since(c.start).Seconds(), verb, key)
	return err
}

func (c *Console) Close() error { return nil }
