package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nerrad567/sentinel-core/internal/accesslog"
	"github.com/nerrad567/sentinel-core/internal/auth"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/metrics"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginUser is the account summary returned with a token.
type loginUser struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Role     auth.Role `json:"role"`
	Nome     string    `json:"nome"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int       `json:"expires_in"`
	User      loginUser `json:"user"`
}

// handleLogin exchanges a username and password for a bearer token.
//
// Unknown usernames and wrong passwords produce byte-identical 401 responses.
// Every attempt that reaches the credential check is written to the access log.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if s.loginLimits != nil && !s.loginLimits.allow(ip) {
		s.metrics.LoginAttempt(metrics.OutcomeRateLimited)
		writeTooManyRequests(w, "too many login attempts")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	result, err := s.authn.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.LoginAttempt(metrics.OutcomeFailure)
			s.recorder.Record(accesslog.Entry{
				Area:      accesslog.AreaLogin,
				Status:    accesslog.StatusFailure,
				IPAddress: ip,
				Detail:    "username=" + truncate(req.Username, maxDetailUsername),
			})
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login failed", "error", err, "request_id", r.Context().Value(ctxKeyRequestID))
		writeInternalError(w, "internal server error")
		return
	}

	s.metrics.LoginAttempt(metrics.OutcomeSuccess)
	s.recorder.Record(accesslog.Entry{
		UserID:    result.User.ID,
		Area:      accesslog.AreaLogin,
		Status:    accesslog.StatusSuccess,
		IPAddress: ip,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresIn: int(time.Until(result.ExpiresAt).Round(time.Second).Seconds()),
		User: loginUser{
			ID:       result.User.ID,
			Username: result.User.Username,
			Role:     result.User.Role,
			Nome:     result.User.DisplayName,
		},
	})
}

// maxDetailUsername bounds how much of a failed username is kept in the log.
const maxDetailUsername = 64

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// handleMe returns the account behind the presented token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	if principal == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	user, err := s.users.GetByID(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "invalid token")
			return
		}
		s.logger.Error("loading current user", "error", err, "user_id", principal.ID)
		writeInternalError(w, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleWSTicket issues a single-use ticket for opening the event stream,
// so the bearer token never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	if principal == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(*principal),
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketStore holds pending WebSocket tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
	now     func() time.Time
}

type ticketEntry struct {
	principal auth.Principal
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		now:     time.Now,
	}
}

// issue creates a ticket bound to principal.
func (t *ticketStore) issue(principal auth.Principal) string {
	ticket := generateTicket()

	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{
		principal: principal,
		expiresAt: t.now().Add(ticketTTL),
	}
	t.mu.Unlock()

	return ticket
}

// redeem consumes a ticket and returns the principal it was issued to.
func (t *ticketStore) redeem(ticket string) (auth.Principal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return auth.Principal{}, false
	}
	delete(t.tickets, ticket)

	if !t.now().Before(entry.expiresAt) {
		return auth.Principal{}, false
	}
	return entry.principal, true
}

// sweep removes expired tickets.
func (t *ticketStore) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for ticket, entry := range t.tickets {
		if !now.Before(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

func (t *ticketStore) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tickets)
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop sweeps expired tickets until ctx is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.sweep()
		}
	}
}
