package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sentinel-core/internal/auth"
)

// maxDisplayNameLength bounds the nome field.
const maxDisplayNameLength = 255

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"nome"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

// validate normalises the request and returns the parsed role.
func (req *createUserRequest) validate() (auth.Role, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Email = strings.TrimSpace(req.Email)

	switch {
	case req.Username == "" || req.Password == "" || req.DisplayName == "" || req.Role == "":
		return "", errors.New("username, password, nome and role are required")
	case !auth.IsValidUsername(req.Username):
		return "", errors.New("username must be 1-64 letters, digits, dots, hyphens or underscores")
	case len(req.Password) < auth.MinPasswordLength:
		return "", errors.New("password must be at least 8 characters")
	case len(req.DisplayName) > maxDisplayNameLength:
		return "", errors.New("nome must be at most 255 characters")
	}

	if req.Email != "" {
		addr, err := mail.ParseAddress(req.Email)
		if err != nil || addr.Address != req.Email {
			return "", errors.New("email is not a valid address")
		}
	}

	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return "", errors.New("role must be staff, manager or security-admin")
	}
	return role, nil
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleCreateUser creates a new user account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	role, err := req.validate()
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	user := &auth.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}

	if err := s.users.Create(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameExists):
			writeConflict(w, "username already exists")
		case errors.Is(err, auth.ErrEmailExists):
			writeConflict(w, "email already in use")
		default:
			s.logger.Error("create user failed", "error", err)
			writeInternalError(w, "failed to create user")
		}
		return
	}

	actor := principalFromContext(r.Context())
	s.logger.Info("user created",
		"user_id", user.ID,
		"username", user.Username,
		"role", user.Role,
		"created_by", actor.ID,
	)

	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser returns a single user by ID.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err, "user_id", id)
		writeInternalError(w, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes a user account. Callers cannot delete themselves.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor := principalFromContext(r.Context())

	if actor.ID == id {
		writeForbidden(w, auth.ErrSelfModification.Error())
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("delete user failed", "error", err, "user_id", id)
		writeInternalError(w, "failed to delete user")
		return
	}

	s.logger.Info("user deleted", "user_id", id, "deleted_by", actor.ID)
	w.WriteHeader(http.StatusNoContent)
}
