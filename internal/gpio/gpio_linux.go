//go:build linux

// Package gpio drives the board's LEDs, power-enable line and mode switch
// through the Linux GPIO character device.
package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "torpedo"

// Chip owns every line the firmware requests on one gpiochip. Lines are
// addressed by offset, which on a Raspberry Pi equals the BCM number.
type Chip struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

func Open(name string) (*Chip, error) {
	c, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("gpio: open %s: %w", name, err)
	}
	return &Chip{chip: c, lines: map[int]*gpiocdev.Line{}}, nil
}

// Find returns the chip carrying the named line ("GPIO23"). Pi 5 kernels
// expose the header on a chip other than gpiochip0.
func Find(line string) (string, error) {
	candidates := []string{"gpiochip0", "gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	var rest []string
	for _, e := range entries {
		if n := e.Name(); strings.HasPrefix(n, "gpiochip") && n != "gpiochip0" && n != "gpiochip4" {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	for _, name := range append(candidates, rest...) {
		c, err := gpiocdev.NewChip(filepath.Join("/dev", name))
		if err != nil {
			continue
		}
		_, err = c.FindLine(line)
		_ = c.Close()
		if err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("gpio: line %q not found on any chip", line)
}

// Output requests offset as an output, initially inactive.
func (c *Chip) Output(offset int, activeLow bool) (*Output, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	l, err := c.request(offset, opts...)
	if err != nil {
		return nil, err
	}
	return &Output{line: l, offset: offset}, nil
}

// WatchFalling calls fn from the event goroutine on each falling edge. The
// line is pulled up; the switch shorts it to ground.
func (c *Chip) WatchFalling(offset int, fn func()) (*Watch, error) {
	l, err := c.request(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { fn() }),
	)
	if err != nil {
		return nil, err
	}
	return &Watch{c: c, offset: offset, line: l}, nil
}

// Hold parks offset as a bias-free input.
func (c *Chip) Hold(offset int) error {
	c.mu.Lock()
	l := c.lines[offset]
	c.mu.Unlock()
	if l != nil {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled); err != nil {
			return fmt.Errorf("gpio: hold %d: %w", offset, err)
		}
		return nil
	}
	_, err := c.request(offset, gpiocdev.AsInput, gpiocdev.WithBiasDisabled)
	return err
}

// Release drives offset as a low output again.
func (c *Chip) Release(offset int) error {
	c.mu.Lock()
	l := c.lines[offset]
	c.mu.Unlock()
	if l != nil {
		if err := l.Reconfigure(gpiocdev.AsOutput(0)); err != nil {
			return fmt.Errorf("gpio: release %d: %w", offset, err)
		}
		return nil
	}
	_, err := c.request(offset, gpiocdev.AsOutput(0))
	return err
}

func (c *Chip) request(offset int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old := c.lines[offset]; old != nil {
		_ = old.Close()
		delete(c.lines, offset)
	}
	l, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("gpio: request line %d: %w", offset, err)
	}
	c.lines[offset] = l
	return l, nil
}

func (c *Chip) release(offset int, l *gpiocdev.Line) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lines[offset] == l {
		delete(c.lines, offset)
	}
	return l.Close()
}

// Close releases every requested line and the chip.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for off, l := range c.lines {
		_ = l.Close()
		delete(c.lines, off)
	}
	return c.chip.Close()
}

// Output is a logical on/off line; polarity was fixed at request time.
type Output struct {
	line   *gpiocdev.Line
	offset int
}

func (o *Output) On() error  { return o.set(1) }
func (o *Output) Off() error { return o.set(0) }

func (o *Output) set(v int) error {
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("gpio: set %d=%d: %w", o.offset, v, err)
	}
	return nil
}

// Watch is an edge subscription.
type Watch struct {
	c      *Chip
	offset int
	line   *gpiocdev.Line
}

func (w *Watch) Close() error {
	return w.c.release(w.offset, w.line)
}
