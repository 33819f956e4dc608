package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sentinel-core/internal/resource"
)

// Resource change actions published to subscribers.
const (
	actionCreated = "created"
	actionUpdated = "updated"
	actionDeleted = "deleted"
)

// handleListResources returns resources matching the optional
// type, status and location query parameters.
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := resource.Filter{
		Type:     resource.Type(q.Get("type")),
		Status:   resource.Status(q.Get("status")),
		Location: q.Get("location"),
	}
	if filter.Type != "" {
		if err := resource.ValidateType(filter.Type); err != nil {
			writeValidationError(w, validationMessage(err))
			return
		}
	}
	if filter.Status != "" {
		if err := resource.ValidateStatus(filter.Status); err != nil {
			writeValidationError(w, validationMessage(err))
			return
		}
	}

	resources, err := s.resources.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list resources failed", "error", err)
		writeInternalError(w, "failed to list resources")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"resources": resources,
		"count":     len(resources),
	})
}

// handleGetResource returns a single resource by ID.
func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.resources.Get(r.Context(), id)
	if err != nil {
		s.writeResourceError(w, err, "get", id)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCreateResource registers a new resource.
func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var res resource.Resource
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	// Server-assigned fields are never taken from the client.
	res.ID = ""

	if err := s.resources.Create(r.Context(), &res); err != nil {
		s.writeResourceError(w, err, "create", "")
		return
	}

	s.logger.Info("resource created",
		"resource_id", res.ID,
		"type", string(res.Type),
		"created_by", principalFromContext(r.Context()).ID,
	)
	s.publishResourceChange(actionCreated, &res)

	writeJSON(w, http.StatusCreated, res)
}

// handleUpdateResource applies a partial update. Fields absent from the
// body are left unchanged.
func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}
	patch, err := resource.DecodePatch(body)
	if err != nil {
		s.writeResourceError(w, err, "update", id)
		return
	}

	res, err := s.resources.Update(r.Context(), id, patch)
	if err != nil {
		s.writeResourceError(w, err, "update", id)
		return
	}

	s.logger.Info("resource updated",
		"resource_id", res.ID,
		"updated_by", principalFromContext(r.Context()).ID,
	)
	s.publishResourceChange(actionUpdated, res)

	writeJSON(w, http.StatusOK, res)
}

// handleDeleteResource removes a resource.
func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.resources.Get(r.Context(), id)
	if err == nil {
		err = s.resources.Delete(r.Context(), id)
	}
	if err != nil {
		s.writeResourceError(w, err, "delete", id)
		return
	}

	s.logger.Info("resource deleted",
		"resource_id", id,
		"deleted_by", principalFromContext(r.Context()).ID,
	)
	s.publishResourceChange(actionDeleted, res)

	w.WriteHeader(http.StatusNoContent)
}

// writeResourceError maps resource package errors onto responses.
func (s *Server) writeResourceError(w http.ResponseWriter, err error, op, id string) {
	switch {
	case errors.Is(err, resource.ErrNotFound):
		writeNotFound(w, "resource not found")
	case errors.Is(err, resource.ErrInvalid):
		writeValidationError(w, validationMessage(err))
	case errors.Is(err, resource.ErrEmptyPatch):
		writeValidationError(w, "no fields to update")
	case errors.Is(err, resource.ErrSerialNumberExists):
		writeConflict(w, "serial_number already exists")
	case errors.Is(err, resource.ErrPlateExists):
		writeConflict(w, "plate already exists")
	default:
		s.logger.Error(op+" resource failed", "error", err, "resource_id", id)
		writeInternalError(w, "failed to "+op+" resource")
	}
}

// validationMessage strips the package prefix from a wrapped ErrInvalid.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, resource.ErrInvalid.Error()+": "); i >= 0 {
		return msg[i+len(resource.ErrInvalid.Error())+2:]
	}
	return msg
}
