package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/internal/core/service"
	"github.com/yndnr/svcreg-go/internal/infra/buildinfo"
)

// handleDump handles GET /debug/services.
//
// The optional interface query parameter keeps only rows whose interface
// name starts with it, so "vendor.foo@1.0::IFoo" and "vendor.foo@" both work.
func (h *Handler) handleDump(w http.ResponseWriter, r *http.Request) {
	var rows []domain.InstanceDebugInfo
	err := h.do(r, func(m *service.ServiceManager, _ *service.TokenManager) {
		rows = m.DebugDump(h.caller())
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if prefix := r.URL.Query().Get("interface"); prefix != "" {
		kept := rows[:0]
		for _, row := range rows {
			if strings.HasPrefix(row.Interface, prefix) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	if rows == nil {
		rows = []domain.InstanceDebugInfo{}
	}

	h.writeJSON(w, r, http.StatusOK, DumpResponse{Count: len(rows), Instances: rows})
}

// handleStats handles GET /debug/stats.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	err := h.do(r, func(m *service.ServiceManager, t *service.TokenManager) {
		s := m.Stats()
		resp = StatsResponse{
			Interfaces:        s.Interfaces,
			Entries:           s.Entries,
			Live:              s.Live,
			PackageListeners:  s.PackageListeners,
			InstanceListeners: s.InstanceListeners,
			Tokens:            t.Len(),
		}
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleStatus handles GET /debug/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.Get()
	h.writeJSON(w, r, http.StatusOK, StatusResponse{
		Status:    "running",
		Version:   info.Version,
		Commit:    info.Commit,
		GoVersion: info.GoVersion,
		StartedAt: h.startedAt.UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}
