package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/sentinel-core/internal/accesslog"
	"github.com/nerrad567/sentinel-core/internal/auth"
)

// recordAccessRequest is the body for POST /access-logs.
type recordAccessRequest struct {
	UserID    string           `json:"user_id,omitempty"`
	Area      string           `json:"access_area"`
	Status    accesslog.Status `json:"status"`
	IPAddress string           `json:"ip_address,omitempty"`
	Detail    string           `json:"detail,omitempty"`
}

// handleListAccessLogs returns a page of the access log, newest first.
func (s *Server) handleListAccessLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := accesslog.Filter{
		UserID: q.Get("user_id"),
		Area:   q.Get("area"),
		Status: accesslog.Status(q.Get("status")),
	}

	if filter.Status != "" && filter.Status != accesslog.StatusSuccess && filter.Status != accesslog.StatusFailure {
		writeValidationError(w, "status must be sucesso or falha")
		return
	}

	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	result, err := s.accessLogs.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list access logs failed", "error", err)
		writeInternalError(w, "failed to list access logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRecordAccess queues an access event reported by a client such as a
// gate controller. The entry is written asynchronously.
func (s *Server) handleRecordAccess(w http.ResponseWriter, r *http.Request) {
	var req recordAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry := accesslog.Entry{
		UserID:    req.UserID,
		Area:      req.Area,
		Status:    req.Status,
		IPAddress: req.IPAddress,
		Detail:    req.Detail,
	}
	if entry.IPAddress == "" {
		entry.IPAddress = clientIP(r)
	}
	if err := entry.Validate(); err != nil {
		writeValidationError(w, accessValidationMessage(err))
		return
	}

	if entry.UserID != "" {
		if _, err := s.users.GetByID(r.Context(), entry.UserID); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				writeValidationError(w, "user_id does not match a user")
				return
			}
			s.logger.Error("checking access log user failed", "error", err, "user_id", entry.UserID)
			writeInternalError(w, "failed to record access")
			return
		}
	}

	if !s.recorder.Record(entry) {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "access log queue is full")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func accessValidationMessage(err error) string {
	msg := err.Error()
	prefix := accesslog.ErrInvalid.Error() + ": "
	if errors.Is(err, accesslog.ErrInvalid) && len(msg) > len(prefix) {
		return msg[len(prefix):]
	}
	return msg
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative value")
	}
	return n, nil
}
