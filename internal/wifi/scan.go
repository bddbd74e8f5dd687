package wifi

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const scanTimeout = 12 * time.Second

// Network is one visible SSID, strongest beacon kept.
type Network struct {
	SSID     string `json:"ssid"`
	Signal   int    `json:"signal,omitempty"`
	Security string `json:"security,omitempty"`
}

// Scan lists nearby networks for the settings page, strongest first.
func (m *Manager) Scan(ctx context.Context) ([]Network, error) {
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()
	out, err := m.nmcli(ctx, "-t", "-f", "SSID,SIGNAL,SECURITY", "dev", "wifi", "list", "--rescan", "yes", "ifname", m.iface)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("wifi: scan timed out")
		}
		return nil, err
	}
	return parseScan(out), nil
}

func parseScan(out string) []Network {
	best := map[string]Network{}
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		parts := splitTerse(strings.TrimRight(s.Text(), "\r"))
		ssid := strings.TrimSpace(parts[0])
		if ssid == "" {
			continue
		}
		n := Network{SSID: ssid}
		if len(parts) >= 2 {
			n.Signal, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
		}
		if len(parts) >= 3 {
			n.Security = strings.TrimSpace(parts[2])
		}
		prev, ok := best[ssid]
		switch {
		case !ok || n.Signal > prev.Signal:
			if n.Security == "" && ok {
				n.Security = prev.Security
			}
			best[ssid] = n
		case prev.Security == "" && n.Security != "":
			prev.Security = n.Security
			best[ssid] = prev
		}
	}

	nets := make([]Network, 0, len(best))
	for _, n := range best {
		nets = append(nets, n)
	}
	sort.Slice(nets, func(i, j int) bool {
		if nets[i].Signal != nets[j].Signal {
			return nets[i].Signal > nets[j].Signal
		}
		return nets[i].SSID < nets[j].SSID
	})
	return nets
}

// splitTerse splits an nmcli -t line on ':', honoring the '\:' and '\\'
// escapes.
func splitTerse(line string) []string {
	fields := make([]string, 0, 4)
	var b strings.Builder
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == ':':
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	if escaped {
		b.WriteByte('\\')
	}
	return append(fields, b.String())
}
