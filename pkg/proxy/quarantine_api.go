package proxy

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/errs"
)

type quarantineStatsResponse struct {
	Enabled            bool `json:"enabled"`
	Quarantined        int  `json:"quarantined"`
	Available          int  `json:"available"`
	Pinned             int  `json:"pinned"`
	Yanked             int  `json:"yanked"`
	ReleasingToday     int  `json:"releasing_today"`
	ReleasingThisWeek  int  `json:"releasing_this_week"`
}

func (e *Engine) handleQuarantineStats(w http.ResponseWriter, r *http.Request) {
	stats, err := e.index.Stats(r.Context())
	if err != nil {
		e.writeError(w, err)
		return
	}

	pending, err := e.index.ListQuarantined(r.Context())
	if err != nil {
		e.writeError(w, err)
		return
	}
	now := time.Now().UTC()
	endOfToday := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
	endOfWeek := endOfToday.AddDate(0, 0, 7-int(now.Weekday()))

	resp := quarantineStatsResponse{
		Enabled:     true,
		Quarantined: stats.GemVersionsByStatus[assetindex.StatusQuarantine],
		Available:   stats.GemVersionsByStatus[assetindex.StatusAvailable],
		Pinned:      stats.GemVersionsByStatus[assetindex.StatusPinned],
		Yanked:      stats.GemVersionsByStatus[assetindex.StatusYanked],
	}
	for _, gv := range pending {
		if !gv.AvailableAfter.After(endOfToday) {
			resp.ReleasingToday++
		}
		if !gv.AvailableAfter.After(endOfWeek) {
			resp.ReleasingThisWeek++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type pendingVersion struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Platform       string `json:"platform,omitempty"`
	Status         string `json:"status"`
	PublishedAt    string `json:"published_at"`
	AvailableAfter string `json:"available_after"`
}

func (e *Engine) handleQuarantinePending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	all, err := e.index.ListQuarantined(r.Context())
	if err != nil {
		e.writeError(w, err)
		return
	}

	if offset > len(all) {
		offset = len(all)
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := all[offset:end]

	versions := make([]pendingVersion, 0, len(page))
	for _, gv := range page {
		versions = append(versions, pendingVersion{
			Name:           gv.Name,
			Version:        gv.Version,
			Platform:       gv.Platform,
			Status:         string(gv.Status),
			PublishedAt:    gv.ObservedAt.Format(time.RFC3339),
			AvailableAfter: gv.AvailableAfter.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"enabled":  true,
		"versions": versions,
	})
}

func (e *Engine) handleQuarantineApprove(w http.ResponseWriter, r *http.Request) {
	e.handleQuarantineTransition(w, r, func(name, version, platform, reason string) error {
		return e.quarantine.Approve(r.Context(), name, version, platform, reason)
	})
}

func (e *Engine) handleQuarantineBlock(w http.ResponseWriter, r *http.Request) {
	e.handleQuarantineTransition(w, r, func(name, version, platform, reason string) error {
		return e.quarantine.Block(r.Context(), name, version, platform, reason)
	})
}

func (e *Engine) handleQuarantineTransition(w http.ResponseWriter, r *http.Request, transition func(name, version, platform, reason string) error) {
	if err := r.ParseForm(); err != nil {
		e.writeError(w, errs.Validation("malformed form body", err))
		return
	}

	gem := chi.URLParam(r, "gem")
	version := chi.URLParam(r, "version")
	reason := r.FormValue("reason")
	platform := r.FormValue("platform")

	if err := transition(gem, version, platform, reason); err != nil {
		e.writeError(w, err)
		return
	}

	http.Redirect(w, r, "/quarantine/api/pending", http.StatusSeeOther)
}
