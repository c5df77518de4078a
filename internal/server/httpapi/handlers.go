package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authapi"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// Device headers.
const (
	headerBrowser        = "X-Device-Browser"
	headerBrowserVersion = "X-Device-Browser-Version"
	headerOS             = "X-Device-OS"
	headerOSVersion      = "X-Device-OS-Version"
)

const maxBodyBytes = 1 << 20

type ctxKey string

const userIDKey ctxKey = "userID"

// AccessResponse is the body of every flow that issues an access token.
type AccessResponse struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	var req authapi.SignupRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.auth.Signup(r.Context(), req.Identifier, req.Password, req.Nickname, clientInfo(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.issue(w, pair, http.StatusCreated)
}

func (h *Handler) signin(w http.ResponseWriter, r *http.Request) {
	var req authapi.SigninRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.auth.Signin(r.Context(), req.Identifier, req.Password, clientInfo(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.issue(w, pair, http.StatusOK)
}

func (h *Handler) renewAccess(w http.ResponseWriter, r *http.Request) {
	pair, err := h.auth.RenewAccess(r.Context(), cookieValue(r, RefreshCookie))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.issue(w, pair, http.StatusOK)
}

func (h *Handler) renewRefresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.auth.RenewRefresh(r.Context(), cookieValue(r, RefreshCookie), clientInfo(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.issue(w, pair, http.StatusOK)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := cookieValue(r, RefreshCookie); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	h.cookies.clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.auth.LogoutAll(r.Context(), userID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.cookies.clear(w)
	respondJSON(w, http.StatusOK, authapi.LogoutAllResponse{Revoked: n})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.auth.ListSessions(r.Context(), userID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := authapi.ListSessionsResponse{Sessions: make([]authapi.Session, 0, len(list))}
	for _, s := range list {
		resp.Sessions = append(resp.Sessions, sessionInfo(s))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req authapi.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.auth.ChangePassword(r.Context(), userID(r.Context()), req.OldPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}

	h.cookies.clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// requireAccess accepts the access token as a Bearer header or the a-token
// cookie, header first.
func (h *Handler) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = cookieValue(r, AccessCookie)
		}
		if token == "" {
			respondError(w, http.StatusUnauthorized, authapi.MsgInvalidAccessToken)
			return
		}

		id, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, common.ErrorUnauthorized) {
				respondError(w, http.StatusUnauthorized, authapi.MsgInvalidAccessToken)
				return
			}
			h.fail(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

func (h *Handler) issue(w http.ResponseWriter, pair *services.TokenPair, status int) {
	h.cookies.setAccess(w, pair.AccessToken, pair.AccessExpiresAt)
	if pair.RefreshToken != "" {
		h.cookies.setRefresh(w, pair.RefreshToken, pair.RefreshExpiresAt)
	}
	respondJSON(w, status, AccessResponse{AccessToken: pair.AccessToken, AccessExpiresAt: pair.AccessExpiresAt})
}

// fail writes the status for a service error. Internal details stay in the
// service log.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorConflict):
		respondError(w, http.StatusConflict, "already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrorValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"error": msg})
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// clientInfo reads the device from X-Device-* headers. RemoteAddr has
// already been rewritten by middleware.RealIP.
func clientInfo(r *http.Request) services.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return services.ClientInfo{
		Device: models.Device{
			Browser:        r.Header.Get(headerBrowser),
			BrowserVersion: r.Header.Get(headerBrowserVersion),
			OS:             r.Header.Get(headerOS),
			OSVersion:      r.Header.Get(headerOSVersion),
		},
		IP: ip,
	}
}

func sessionInfo(s models.Session) authapi.Session {
	return authapi.Session{
		ID:             s.ID,
		Browser:        s.Device.Browser,
		BrowserVersion: s.Device.BrowserVersion,
		OS:             s.Device.OS,
		OSVersion:      s.Device.OSVersion,
		IP:             s.IP,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
	}
}
