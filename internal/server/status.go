package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/reviewdesk/internal/storage"
)

const probeTimeout = 5 * time.Second

// Probe checks one dependency. Check returns optional details and an error when unhealthy.
type Probe struct {
	Name  string
	Check func(ctx context.Context) (any, error)
}

// ComponentStatus is one entry of the system status report.
type ComponentStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

// SystemStatus is the body of GET /api/system/status.
type SystemStatus struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Disk       *storage.Usage             `json:"disk,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// systemStatus runs every probe concurrently. The overall status is "degraded" when any
// component is unhealthy.
func (s *Server) systemStatus(ctx context.Context) SystemStatus {
	results := make([]ComponentStatus, len(s.probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, probeTimeout)
			defer cancel()
			details, err := p.Check(pctx)
			st := ComponentStatus{Status: "healthy", Details: details}
			if err != nil {
				st.Status = "unhealthy"
				st.Error = err.Error()
			}
			results[i] = st
			return nil
		})
	}
	_ = g.Wait()

	out := SystemStatus{
		Status:     "healthy",
		Components: make(map[string]ComponentStatus, len(s.probes)),
		Timestamp:  time.Now().UTC(),
	}
	for i, p := range s.probes {
		out.Components[p.Name] = results[i]
		if results[i].Status != "healthy" {
			out.Status = "degraded"
		}
	}
	if s.dbPath != "" || s.idxPath != "" {
		usage, err := storage.MeasureUsage(s.dbPath, s.idxPath)
		if err != nil {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		} else {
			out.Disk = &usage
		}
	}
	return out
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	s.respondOK(w, http.StatusOK, s.systemStatus(r.Context()))
}
