package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/valtrion/allocd/internal/core/domain"
	"github.com/valtrion/allocd/internal/core/ports"
	"github.com/valtrion/allocd/internal/core/services"
)

const actorHeader = "X-Actor-ID"

type AllocationHandler struct {
	svc *services.AllocationService
}

func NewAllocationHandler(svc *services.AllocationService) *AllocationHandler {
	return &AllocationHandler{svc: svc}
}

// RunBatch handles POST /allocations/run-batch.
func (h *AllocationHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	result, err := h.svc.RunBatch(r.Context(), actorID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Release handles POST /allocations/{id}/release.
func (h *AllocationHandler) Release(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	allocationID, ok := parseReleasePath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}

	alloc, err := h.svc.Release(r.Context(), allocationID, actorID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, releaseResponse{
		AllocationID: alloc.ID.String(),
		UnitID:       alloc.UnitID.String(),
		Status:       string(alloc.Status),
		VacatedAt:    alloc.VacatedAt,
	})
}

func parseReleasePath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "allocations" || parts[2] != "release" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type releaseResponse struct {
	AllocationID string     `json:"allocation_id"`
	UnitID       string     `json:"unit_id"`
	Status       string     `json:"status"`
	VacatedAt    *time.Time `json:"vacated_at"`
}

// Units handles GET /units?status= and POST /units.
func (h *AllocationHandler) Units(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := domain.UnitStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = domain.UnitVacant
		}
		units, err := h.svc.ListUnits(r.Context(), status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"units": units})

	case http.MethodPost:
		var in services.CreateUnitInput
		if err := decodeBody(w, r, &in); err != nil {
			return
		}
		unit, err := h.svc.CreateUnit(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, unit)

	default:
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	}
}

// Requests handles GET /requests?fulfilled=false and POST /requests.
func (h *AllocationHandler) Requests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		requests, err := h.svc.ListPendingRequests(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})

	case http.MethodPost:
		var in services.SubmitRequestInput
		if err := decodeBody(w, r, &in); err != nil {
			return
		}
		request, err := h.svc.SubmitRequest(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, request)

	default:
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	}
}

// Audit handles GET /audit?entity_type=&entity_id=&cursor=&limit=.
func (h *AllocationHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	filter := ports.AuditFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if raw := q.Get("cursor"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cursor < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid cursor")
			return
		}
		filter.AfterID = cursor
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	page, err := h.svc.QueryAudit(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Stats handles GET /stats.
func (h *AllocationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	report, err := h.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func actorID(r *http.Request) string {
	if actor := r.Header.Get(actorHeader); actor != "" {
		return actor
	}
	return domain.ActorSystem
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
