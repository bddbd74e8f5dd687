//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: unsupported on this platform")

type Chip struct{}

type Output struct{}

type Watch struct{}

func Find(line string) (string, error) { return "", errUnsupported }

func Open(name string) (*Chip, error) { return nil, errUnsupported }

func (c *Chip) Output(offset int, activeLow bool) (*Output, error) { return nil, errUnsupported }
func (c *Chip) WatchFalling(offset int, fn func()) (*Watch, error) { return nil, errUnsupported }
func (c *Chip) Hold(offset int) error                              { return errUnsupported }
func (c *Chip) Release(offset int) error                           { return errUnsupported }
func (c *Chip) Close() error                                       { return nil }

func (o *Output) On() error  { return errUnsupported }
func (o *Output) Off() error { return errUnsupported }

func (w *Watch) Close() error { return nil }
