package board

import (
	"os"
	"strings"
)

var modelPaths = []string{
	"/sys/firmware/devicetree/base/model",
	"/proc/device-tree/model",
}

// Model returns the device-tree model string, or "" off a device-tree
// system.
func Model() string {
	for _, p := range modelPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if m := strings.Trim(strings.TrimSpace(string(b)), "\x00"); m != "" {
			return m
		}
	}
	return ""
}
