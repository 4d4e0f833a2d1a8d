// ABOUTME: HTTP handlers for token issue, password reset, settings and private configuration
// ABOUTME: Error bodies follow the shapes the sign-in client decodes

package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-signin/internal/apierr"
	"github.com/2389/coven-signin/internal/auth"
)

// maxBodySize limits request bodies.
const maxBodySize = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrors(w http.ResponseWriter, status int, details ...apierr.Detail) {
	writeJSON(w, status, map[string][]apierr.Detail{"errors": details})
}

func writeCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrors(w, http.StatusBadRequest, apierr.Detail{
			Message:   "Request body is not valid JSON.",
			ErrorType: "BadRequestError",
		})
		return false
	}
	return true
}

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GrantType != "password" {
		writeErrors(w, http.StatusBadRequest, apierr.Detail{
			Message:   "Unsupported grant type.",
			ErrorType: "BadRequestError",
		})
		return
	}

	u, err := s.users.check(req.Username, req.Password)
	switch {
	case errors.Is(err, ErrUnknownUser):
		s.logger.Info("sign-in rejected", "reason", "unknown user")
		writeCode(w, http.StatusUnauthorized, apierr.CodeUserNotFound, "User does not exist.")
		return
	case errors.Is(err, ErrWrongPassword):
		s.logger.Info("sign-in rejected", "reason", "wrong password", "user", normalizeEmail(req.Username))
		writeCode(w, http.StatusUnauthorized, apierr.CodeNotAuthorized, "Incorrect username or password.")
		return
	case errors.Is(err, ErrResetRequired):
		s.logger.Info("sign-in rejected", "reason", "password reset required", "user", u.email)
		writeCode(w, http.StatusUnauthorized, apierr.CodePasswordResetRequired, "Password reset required for the user.")
		return
	case err != nil:
		s.logger.Error("checking credentials", "error", err)
		writeErrors(w, http.StatusInternalServerError, apierr.Detail{Message: "Internal server error."})
		return
	}

	token, err := s.verifier.Generate(u.email, s.tokenTTL)
	if err != nil {
		s.logger.Error("generating token", "error", err)
		writeErrors(w, http.StatusInternalServerError, apierr.Detail{Message: "Internal server error."})
		return
	}

	s.logger.Info("sign-in accepted", "user", u.email)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  token,
		RefreshToken: uuid.New().String(),
		ExpiresIn:    int64(s.tokenTTL / time.Second),
		TokenType:    "Bearer",
	})
}

type resetRequest struct {
	PasswordReset []struct {
		Email string `json:"email"`
	} `json:"passwordreset"`
}

// Reset is a password reset the server accepted.
type Reset struct {
	Email       string
	Token       string
	RequestedAt time.Time
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.PasswordReset) == 0 || strings.TrimSpace(req.PasswordReset[0].Email) == "" {
		writeErrors(w, http.StatusUnprocessableEntity, apierr.Detail{
			Message:   "No email provided.",
			ErrorType: "ValidationError",
		})
		return
	}

	email := normalizeEmail(req.PasswordReset[0].Email)
	if _, ok := s.users.lookup(email); !ok {
		s.logger.Info("password reset rejected", "reason", "unknown user")
		writeErrors(w, http.StatusNotFound, apierr.Detail{
			Message:   "There is no user with that email address.",
			ErrorType: "NotFoundError",
		})
		return
	}

	if s.resets.CheckAndMark(email) {
		wait := int(math.Ceil(s.resets.Remaining(email).Seconds()))
		writeErrors(w, http.StatusTooManyRequests, apierr.Detail{
			Message:   fmt.Sprintf("Please wait %d seconds before requesting another password reset.", wait),
			ErrorType: "TooManyRequestsError",
		})
		return
	}

	reset := Reset{Email: email, Token: uuid.New().String(), RequestedAt: time.Now().UTC()}
	s.mu.Lock()
	s.outbox = append(s.outbox, reset)
	s.mu.Unlock()

	s.logger.Info("password reset issued", "user", email)
	s.logger.Debug("password reset token", "user", email, "token", reset.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"passwordreset": []map[string]string{{"message": "Check your email for further instructions."}},
	})
}

type setting struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Type  string `json:"type"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	types := map[string]bool{}
	for _, t := range strings.Split(r.URL.Query().Get("type"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = true
		}
	}

	// Private settings are only listed for authenticated callers.
	authed := auth.FromContext(r.Context()) != nil

	out := make([]setting, 0, len(s.settings))
	for _, st := range s.settings {
		if len(types) > 0 && !types[st.Type] {
			continue
		}
		if st.Type == "private" && !authed {
			continue
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, map[string][]setting{"settings": out})
}

type configEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) handlePrivateConfiguration(w http.ResponseWriter, r *http.Request) {
	a := auth.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string][]configEntry{"configuration": {
		{Key: "version", Value: s.version},
		{Key: "environment", Value: "development"},
		{Key: "fileStorage", Value: true},
		{Key: "user", Value: a.Subject},
	}})
}
