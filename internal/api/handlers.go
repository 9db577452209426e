package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/verte-zerg/focusflow/internal/errs"
	"github.com/verte-zerg/focusflow/internal/model"
)

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	var mode model.ReadingMode
	if req.ReadingMode != "" {
		parsed, err := model.ParseReadingMode(req.ReadingMode)
		if err != nil {
			h.writeError(w, errs.Wrap(errs.KindInvalidValue, "invalid readingMode", err))
			return
		}
		mode = parsed
	}
	sess, err := h.svc.StartSession(r.Context(), userFrom(r.Context()), req.DocumentName, mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetSession(r.Context(), userFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	var override *float64
	if raw := r.URL.Query().Get("focusScore"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, errs.New(errs.KindInvalidValue, "invalid focusScore %q", raw))
			return
		}
		override = &v
	}
	sess, err := h.svc.EndSession(r.Context(), userFrom(r.Context()), mux.Vars(r)["id"], override)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

func (h *Handler) ingestGaze(w http.ResponseWriter, r *http.Request) {
	var req []gazeSampleDTO
	if !h.decode(w, r, &req) {
		return
	}
	samples := make([]model.GazeSample, 0, len(req))
	for _, g := range req {
		samples = append(samples, g.model())
	}
	res, err := h.svc.IngestGaze(r.Context(), userFrom(r.Context()), mux.Vars(r)["id"], samples)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIngestResponse(res))
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.svc.Pause)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.svc.Resume)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, userID, sessionID string, ts int64) (*model.FocusEvent, error)) {
	var req triggerRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	ev, err := apply(r.Context(), userFrom(r.Context()), mux.Vars(r)["id"], req.Timestamp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ev == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(*ev))
}

func (h *Handler) switchMode(w http.ResponseWriter, r *http.Request) {
	var req switchModeRequest
	if !h.decode(w, r, &req) {
		return
	}
	mode, err := model.ParseReadingMode(req.ReadingMode)
	if err != nil {
		h.writeError(w, errs.Wrap(errs.KindInvalidValue, "invalid readingMode", err))
		return
	}
	sess, err := h.svc.SwitchMode(r.Context(), userFrom(r.Context()), mux.Vars(r)["id"], mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context(), userFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTOs(events))
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	summary, err := h.svc.GetAnalytics(r.Context(), userFrom(r.Context()), opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalyticsResponse(summary))
}

func (h *Handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	prefs, err := h.svc.GetPreferences(r.Context(), userID)
	if errors.Is(err, errs.ErrNotFound) {
		prefs, err = model.DefaultPreferences(userID), nil
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesDTO(prefs))
}

// savePreferences applies the body on top of the stored preferences, so
// omitted fields keep their current value.
func (h *Handler) savePreferences(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	current, err := h.svc.GetPreferences(r.Context(), userID)
	if errors.Is(err, errs.ErrNotFound) {
		current, err = model.DefaultPreferences(userID), nil
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	req := toPreferencesDTO(current)
	if !h.decode(w, r, &req) {
		return
	}
	mode, err := model.ParseReadingMode(req.DefaultReadingMode)
	if err != nil {
		h.writeError(w, errs.Wrap(errs.KindInvalidValue, "invalid defaultReadingMode", err))
		return
	}
	saved, err := h.svc.SavePreferences(r.Context(), model.UserPreferences{
		UserID:             userID,
		DefaultReadingMode: mode,
		BionicIntensity:    req.BionicIntensity,
		RSVPSpeed:          req.RSVPSpeed,
		BackgroundColor:    req.BackgroundColor,
		TextColor:          req.TextColor,
		FontSize:           req.FontSize,
		FontFamily:         req.FontFamily,
		FocusMaskEnabled:   req.FocusMaskEnabled,
		AutoModeSwitch:     req.AutoModeSwitch,
		EyeTrackingEnabled: req.EyeTrackingEnabled,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesDTO(saved))
}

func parseListOptions(r *http.Request) (model.ListOptions, error) {
	var opts model.ListOptions
	q := r.URL.Query()
	if raw := q.Get("since"); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			return opts, errs.New(errs.KindInvalidValue, "invalid since %q", raw)
		}
		opts.Since = &since
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, errs.New(errs.KindInvalidValue, "invalid limit %q", raw)
		}
		opts.Limit = n
	}
	return opts, nil
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.UTC)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, h.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, errs.Wrap(errs.KindInvalidValue, "invalid request body", err))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := kind.HTTPStatus()
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Best-effort: the status line is already written.
		_ = err
	}
}
