//go:build !linux

package web

import "errors"

func diskFree(string) (uint64, error) {
	return 0, errors.New("disk usage unsupported on this OS")
}
