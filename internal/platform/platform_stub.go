//go:build !linux

package platform

import "errors"

func restart() error { return errors.New("platform: reboot unsupported on this OS") }

func powerOff() error { return errors.New("platform: power off unsupported on this OS") }
