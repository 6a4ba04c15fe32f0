package replay

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/rohmanhakim/archivist/internal/snapshot"
)

/*
Thin HTTP surface over the assembler:

	GET /at/<YYYYMMDDHHMMSS>/<url>   time-travel replay
	GET /snapshots?url=<url>         snapshot listing, newest first
	GET /health                      liveness

The replay path is parsed from the raw request path because the
embedded original URL contains slashes (and usually "://") that a
pattern-routing mux would mangle.
*/

type Handler struct {
	assembler Assembler
	snapshots snapshot.Repo
	log       *logrus.Entry
}

func NewHandler(assembler Assembler, snapshots snapshot.Repo) *Handler {
	return &Handler{
		assembler: assembler,
		snapshots: snapshots,
		log:       logrus.WithField("component", "replay-http"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case r.URL.Path == "/snapshots":
		h.handleSnapshots(w, r)
	default:
		h.handleReplay(w, r)
	}
}

func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	timestampStr, urlStr, ok := splitReplayPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	replayURL, err := ParseReplayURL(timestampStr, urlStr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	response, replayErr := h.assembler.Replay(r.Context(), replayURL)
	if replayErr != nil {
		var re *ReplayError
		if errors.As(replayErr, &re) && re.Cause == ErrCauseResolverMiss {
			http.Error(w, "no snapshot at or before requested instant", http.StatusNotFound)
			return
		}
		h.log.WithError(replayErr).WithField("url", urlStr).Error("replay failed")
		http.Error(w, "replay failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", response.MediaType)
	w.WriteHeader(response.Status)
	_, _ = w.Write(response.Body)
}

type snapshotView struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	MediaType string    `json:"media_type"`
	Digest    string    `json:"digest"`
	ReplayURL string    `json:"replay_url"`
}

func (h *Handler) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "url query parameter required", http.StatusBadRequest)
		return
	}

	snapshots, err := h.snapshots.ListByURL(r.Context(), target, 100)
	if err != nil {
		h.log.WithError(err).Error("snapshot listing failed")
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}

	views := make([]snapshotView, 0, len(snapshots))
	for _, s := range snapshots {
		replayURL := NewReplayURL(s.Timestamp, s.URL)
		views = append(views, snapshotView{
			ID:        s.ID,
			Timestamp: s.Timestamp,
			Status:    s.Status,
			MediaType: s.MediaType,
			Digest:    s.ContentDigest,
			ReplayURL: replayURL.Format(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"url":       target,
		"snapshots": views,
	})
}
