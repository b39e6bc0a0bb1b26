package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/signet/internal/audit"
	"github.com/dropDatabas3/signet/internal/http/httpx"
	"github.com/dropDatabas3/signet/internal/observability/logger"
	"github.com/dropDatabas3/signet/internal/profile"
	"github.com/dropDatabas3/signet/internal/util"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ReturnTo string `json:"return_to,omitempty"`
}

type loginResponse struct {
	SubjectID string `json:"subject_id"`
	SessionID string `json:"session_id"`
	ReturnTo  string `json:"return_to,omitempty"`
}

// SessionLogin serves POST /v1/session/login. The login UI posts the
// end-user credentials here; on success a session cookie is set and the UI
// resumes the pending authorize request via return_to.
func (d *Deps) SessionLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		req.ReturnTo = r.PostFormValue("return_to")
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	sub, err := d.Auth.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, profile.ErrBadCredentials) {
			audit.Event(ctx, "user.login.failed", logger.String("username", util.Mask(req.Username)))
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		logger.From(ctx).Error("login failed", logger.Err(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	sess, err := d.Sessions.Issue(w, sub)
	if err != nil {
		logger.From(ctx).Error("session issue failed", logger.Err(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	audit.Event(ctx, "user.login",
		logger.UserID(sub), logger.SessionID(sess.SessionID))

	ret := sanitizeReturnTo(req.ReturnTo)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		SubjectID: sub,
		SessionID: sess.SessionID,
		ReturnTo:  ret,
	})
}

// SessionLogout serves POST /v1/session/logout.
func (d *Deps) SessionLogout(w http.ResponseWriter, r *http.Request) {
	d.Sessions.Clear(w, r)
	audit.Event(r.Context(), "user.logout")
	w.WriteHeader(http.StatusNoContent)
}

// sanitizeReturnTo only passes through same-site relative targets so the
// login flow cannot become an open redirector.
func sanitizeReturnTo(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return ""
	}
	return u.String()
}
