package web

import (
	"net"
	"net/http"
	"sort"
	"time"

	"torpedo/internal/sampler"
)

// Info describes the running boot for the status page.
type Info struct {
	Mode       string
	ResetCause string
	Model      string
	DataDir    string
}

type statusResponse struct {
	NowUTC     string           `json:"now_utc"`
	Mode       string           `json:"mode"`
	ResetCause string           `json:"reset_cause"`
	Tilt       sampler.Snapshot `json:"tilt"`
	Calibrated bool             `json:"calibrated"`
	Points     int              `json:"points"`
	Addrs      []string         `json:"addrs"`
	DataFree   uint64           `json:"data_free_bytes,omitempty"`
}

func (c *Calibration) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		NowUTC:     time.Now().UTC().Format(time.RFC3339Nano),
		Mode:       c.Info.Mode,
		ResetCause: c.Info.ResetCause,
		Addrs:      localAddrs(),
	}
	if c.Live != nil {
		resp.Tilt = c.Live.Snapshot()
	}
	if p, err := c.loadRegression(); err == nil {
		resp.Calibrated = p.Complete()
	}
	if c.Points != nil {
		if pts, err := c.Points.Points(); err == nil {
			resp.Points = len(pts)
		}
	}
	if c.Info.DataDir != "" {
		if free, err := diskFree(c.Info.DataDir); err == nil {
			resp.DataFree = free
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// localAddrs lists "iface: a.b.c.d/nn" for every up, non-loopback IPv4
// address, so the operator can find the device on both networks.
func localAddrs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	out := []string{}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil || ipnet.IP.IsLinkLocalUnicast() {
				continue
			}
			out = append(out, ifi.Name+": "+ipnet.String())
		}
	}
	sort.Strings(out)
	return out
}
