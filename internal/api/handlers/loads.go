package handlers

import (
	"load-tracking-service/internal/api/dto"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/platform/auth"
	"load-tracking-service/internal/services"
	"net/http"
	"strings"
)

// LoadHandler exposes the load lifecycle over HTTP.
type LoadHandler struct {
	Loads *services.LoadLifecycle
}

func ownerID(r *http.Request) string {
	p, _ := auth.FromContext(r.Context())
	return p.UserID
}

// requestOrigin is the browser origin, or the scheme and host the request
// arrived on.
func requestOrigin(r *http.Request) string {
	if o := strings.TrimSpace(r.Header.Get("Origin")); o != "" && o != "null" {
		return o
	}
	if r.Host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + r.Host
}

func (h *LoadHandler) List(w http.ResponseWriter, r *http.Request) {
	loads, err := h.Loads.List(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if loads == nil {
		loads = []*domain.Load{}
	}
	writeJSON(w, r, http.StatusOK, loads)
}

func (h *LoadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	l, err := h.Loads.Create(r.Context(), ownerID(r), requestOrigin(r), req.Input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, l)
}

// Get is public: tracking pages look loads up by id alone.
func (h *LoadHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.Loads.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, l)
}

func (h *LoadHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	l, err := h.Loads.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.TrackingResponse{TrackingURL: l.TrackingURL})
}

func (h *LoadHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Loads.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.MessageResponse{Message: "Load canceled"})
}

func (h *LoadHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Loads.Complete(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.MessageResponse{Message: "Load completed"})
}

func (h *LoadHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req dto.LocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, _, err := h.Loads.UpdateLocation(r.Context(), r.PathValue("id"), req.Lat, req.Lng); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.MessageResponse{Message: "Driver location updated"})
}

func (h *LoadHandler) DriverLocation(w http.ResponseWriter, r *http.Request) {
	pos, err := h.Loads.DriverLocation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var res dto.DriverLocationResponse
	if pos != nil {
		ts := pos.Timestamp.UnixMilli()
		res = dto.DriverLocationResponse{Lat: &pos.Lat, Lng: &pos.Lng, City: &pos.City, Timestamp: &ts}
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Delete always answers 200; removing a missing load is a no-op.
func (h *LoadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Loads.Delete(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.MessageResponse{Message: "Load deleted successfully"})
}
