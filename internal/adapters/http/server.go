package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"busboard/internal/domain"
	"busboard/internal/services/contributions"
	"busboard/internal/services/moderation"
)

// Uploads beyond this size are rejected before reading the body.
const maxImageBytes = 10 << 20

type Server struct {
	contribs *contributions.Service
	mod      *moderation.Service
	logger   *slog.Logger
}

func New(contribs *contributions.Service, mod *moderation.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{contribs: contribs, mod: mod, logger: logger}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/contributions", func(r chi.Router) {
		r.Post("/route", s.handleSubmitRoute)
		r.Post("/image", s.handleSubmitImage)
		r.Get("/{id}", s.handleGetContribution)
	})
	r.Get("/users/{id}/contributions", s.handleUserContributions)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/contributions/{type}/{id}/approve", s.handleApprove)
		r.Post("/contributions/{type}/{id}/reject", s.handleReject)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stopPayload struct {
	Name          string   `json:"name"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	ArrivalTime   string   `json:"arrivalTime,omitempty"`
	DepartureTime string   `json:"departureTime,omitempty"`
	Order         int      `json:"order"`
}

type routePayload struct {
	SubmittedBy   string        `json:"submittedBy"`
	BusNumber     string        `json:"busNumber"`
	BusName       string        `json:"busName,omitempty"`
	FromName      string        `json:"fromName"`
	FromLatitude  *float64      `json:"fromLatitude,omitempty"`
	FromLongitude *float64      `json:"fromLongitude,omitempty"`
	ToName        string        `json:"toName"`
	ToLatitude    *float64      `json:"toLatitude,omitempty"`
	ToLongitude   *float64      `json:"toLongitude,omitempty"`
	DepartureTime string        `json:"departureTime"`
	ArrivalTime   string        `json:"arrivalTime"`
	Stops         []stopPayload `json:"stops,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

func (s *Server) handleSubmitRoute(w http.ResponseWriter, r *http.Request) {
	var payload routePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c := domain.RouteContribution{
		SubmittedBy:   payload.SubmittedBy,
		BusNumber:     payload.BusNumber,
		BusName:       payload.BusName,
		FromName:      payload.FromName,
		FromLatitude:  payload.FromLatitude,
		FromLongitude: payload.FromLongitude,
		ToName:        payload.ToName,
		ToLatitude:    payload.ToLatitude,
		ToLongitude:   payload.ToLongitude,
		DepartureTime: payload.DepartureTime,
		ArrivalTime:   payload.ArrivalTime,
		Notes:         payload.Notes,
	}
	for _, stop := range payload.Stops {
		c.Stops = append(c.Stops, domain.StopContribution{
			Name:          stop.Name,
			Latitude:      stop.Latitude,
			Longitude:     stop.Longitude,
			ArrivalTime:   stop.ArrivalTime,
			DepartureTime: stop.DepartureTime,
			Order:         stop.Order,
		})
	}

	saved, err := s.contribs.SubmitRoute(r.Context(), c)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, routeView(saved))
}

func (s *Server) handleSubmitImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read image")
		return
	}
	if len(data) > maxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}

	saved, err := s.contribs.SubmitImage(r.Context(),
		r.FormValue("submittedBy"), r.FormValue("description"), data)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, imageView(saved))
}

func (s *Server) handleGetContribution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if route, err := s.contribs.Route(r.Context(), id); err == nil {
		writeJSON(w, http.StatusOK, routeView(route))
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.writeServiceError(w, err)
		return
	}

	image, err := s.contribs.Image(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imageView(image))
}

func (s *Server) handleUserContributions(w http.ResponseWriter, r *http.Request) {
	routes, images, err := s.contribs.BySubmitter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := struct {
		Routes []map[string]any `json:"routes"`
		Images []map[string]any `json:"images"`
	}{Routes: []map[string]any{}, Images: []map[string]any{}}
	for _, c := range routes {
		out.Routes = append(out.Routes, routeView(c))
	}
	for _, c := range images {
		out.Images = append(out.Images, imageView(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type decisionPayload struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var payload decisionPayload
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}
	id := chi.URLParam(r, "id")

	switch chi.URLParam(r, "type") {
	case "route":
		updated, err := s.mod.ApproveRoute(r.Context(), id, payload.Notes)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, routeView(updated))
	case "image":
		updated, err := s.mod.ApproveImage(r.Context(), id, payload.Notes)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, imageView(updated))
	default:
		writeError(w, http.StatusNotFound, "unknown contribution type")
	}
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var payload decisionPayload
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}
	id := chi.URLParam(r, "id")

	switch chi.URLParam(r, "type") {
	case "route":
		updated, err := s.mod.RejectRoute(r.Context(), id, payload.Reason)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, routeView(updated))
	case "image":
		updated, err := s.mod.RejectImage(r.Context(), id, payload.Reason)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, imageView(updated))
	default:
		writeError(w, http.StatusNotFound, "unknown contribution type")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.contribs.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make(map[string]map[string]int, len(stats))
	for ctype, byStatus := range stats {
		inner := make(map[string]int, len(byStatus))
		for status, count := range byStatus {
			inner[string(status)] = count
		}
		out[string(ctype)] = inner
	}
	writeJSON(w, http.StatusOK, out)
}

func routeView(c domain.RouteContribution) map[string]any {
	out := map[string]any{
		"id":             c.ID,
		"type":           string(domain.TypeRoute),
		"submittedBy":    c.SubmittedBy,
		"busNumber":      c.BusNumber,
		"fromName":       c.FromName,
		"toName":         c.ToName,
		"departureTime":  c.DepartureTime,
		"arrivalTime":    c.ArrivalTime,
		"status":         string(c.Status),
		"statusMessage":  c.StatusMessage,
		"submissionDate": c.SubmissionDate.Format(time.RFC3339),
	}
	if c.BusName != "" {
		out["busName"] = c.BusName
	}
	if c.ProcessedDate != nil {
		out["processedDate"] = c.ProcessedDate.Format(time.RFC3339)
	}
	if c.SourceImageID != "" {
		out["sourceImageId"] = c.SourceImageID
	}
	if len(c.Stops) > 0 {
		stops := make([]map[string]any, 0, len(c.Stops))
		for _, stop := range c.Stops {
			stops = append(stops, map[string]any{
				"name":  stop.Name,
				"order": stop.Order,
			})
		}
		out["stops"] = stops
	}
	return out
}

func imageView(c domain.ImageContribution) map[string]any {
	out := map[string]any{
		"id":             c.ID,
		"type":           string(domain.TypeImage),
		"submittedBy":    c.SubmittedBy,
		"status":         string(c.Status),
		"statusMessage":  c.StatusMessage,
		"submissionDate": c.SubmissionDate.Format(time.RFC3339),
	}
	if c.Description != "" {
		out["description"] = c.Description
	}
	if c.ProcessedDate != nil {
		out["processedDate"] = c.ProcessedDate.Format(time.RFC3339)
	}
	if c.DerivedRouteID != "" {
		out["derivedRouteId"] = c.DerivedRouteID
	}
	return out
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "contribution not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
