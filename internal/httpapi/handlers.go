package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-fuel-stations/events"
	"github.com/goliatone/go-fuel-stations/paging"
	"github.com/goliatone/go-fuel-stations/review"
	"github.com/goliatone/go-fuel-stations/search"
	"github.com/goliatone/go-fuel-stations/station"
)

// AdminHeader carries the email of the admin evaluating a proposal.
const AdminHeader = "X-Admin-Email"

func (h *Handler) listStations(w http.ResponseWriter, r *http.Request) {
	c, err := parseCriteria(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.stations.List(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) mapStations(w http.ResponseWriter, r *http.Request) {
	c, err := parseCriteria(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	points, err := h.stations.Map(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if points == nil {
		points = []station.MapPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *Handler) nearestStations(w http.ResponseWriter, r *http.Request) {
	c, err := parseCriteria(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get(paramLimit); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:  "invalid_request",
				Fields: map[string]string{paramLimit: "must be a positive integer"},
			})
			return
		}
	}
	items, err := h.stations.Nearest(r.Context(), c, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []station.ListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "malformed email"})
		return
	}
	stats, err := h.stats.Stats(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) topUsers(w http.ResponseWriter, r *http.Request) {
	top, err := h.stats.Top(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

type evaluateRequest struct {
	ProposalID uuid.UUID       `json:"proposalId"`
	UserID     uuid.UUID       `json:"userId"`
	UserEmail  string          `json:"userEmail"`
	StationID  uuid.UUID       `json:"stationId"`
	FuelType   string          `json:"fuelType"`
	Price      decimal.Decimal `json:"price"`
	Accept     bool            `json:"accept"`
}

type evaluateResponse struct {
	Accepted       bool     `json:"accepted"`
	Handlers       int      `json:"handlers"`
	FailedHandlers []string `json:"failedHandlers,omitempty"`
}

func (h *Handler) evaluateProposal(w http.ResponseWriter, r *http.Request) {
	admin := r.Header.Get(AdminHeader)
	if admin == "" {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "malformed JSON body"})
		return
	}

	out, err := h.proposals.Evaluate(r.Context(), review.Proposal{
		ID:        req.ProposalID,
		User:      events.UserRef{ID: req.UserID, Email: req.UserEmail},
		StationID: req.StationID,
		FuelType:  req.FuelType,
		Price:     req.Price,
	}, events.UserRef{Email: admin}, req.Accept)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := evaluateResponse{
		Accepted:       out.Event.Accepted,
		Handlers:       len(out.Report.Results),
		FailedHandlers: failedHandlers(out.Report),
	}
	writeJSON(w, http.StatusOK, resp)
}

type banRequest struct {
	UserID uuid.UUID `json:"userId"`
	Reason string    `json:"reason"`
	Days   int       `json:"days"`
}

type moderationResponse struct {
	User           string   `json:"user"`
	Handlers       int      `json:"handlers"`
	FailedHandlers []string `json:"failedHandlers,omitempty"`
}

func (h *Handler) banUser(w http.ResponseWriter, r *http.Request) {
	admin, user, ok := h.moderationTarget(w, r)
	if !ok {
		return
	}

	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "malformed JSON body"})
		return
	}
	user.ID = req.UserID

	report, err := h.moderation.Ban(r.Context(), user, admin, req.Reason, req.Days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moderationResponse{
		User:           user.Email,
		Handlers:       len(report.Results),
		FailedHandlers: failedHandlers(report),
	})
}

func (h *Handler) unlockUser(w http.ResponseWriter, r *http.Request) {
	admin, user, ok := h.moderationTarget(w, r)
	if !ok {
		return
	}

	report := h.moderation.Unlock(r.Context(), user, admin)
	writeJSON(w, http.StatusOK, moderationResponse{
		User:           user.Email,
		Handlers:       len(report.Results),
		FailedHandlers: failedHandlers(report),
	})
}

// moderationTarget reads the admin header and the user email from the path.
// It writes the error response itself when either is unusable.
func (h *Handler) moderationTarget(w http.ResponseWriter, r *http.Request) (admin, user events.UserRef, ok bool) {
	adminEmail := r.Header.Get(AdminHeader)
	if adminEmail == "" {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return admin, user, false
	}
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "malformed email"})
		return admin, user, false
	}
	return events.UserRef{Email: adminEmail}, events.UserRef{Email: email}, true
}

func failedHandlers(report events.Report) []string {
	var out []string
	for _, f := range report.Failed() {
		out = append(out, f.Handler)
	}
	return out
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeError maps domain errors to status codes. Cache failures never reach
// this point because the cache fails open.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *search.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for name, ferr := range verr.Fields {
			fields[name] = ferr.Error()
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_criteria", Fields: fields})
	case errors.Is(err, search.ErrInvalidCriteria),
		errors.Is(err, paging.ErrInvalidPage),
		errors.Is(err, review.ErrInvalidProposal),
		errors.Is(err, review.ErrInvalidBan):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: err.Error()})
	case errors.Is(err, station.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
