package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/taskboard/internal/auth"
	"github.com/sakif/taskboard/internal/metrics"
	"github.com/sakif/taskboard/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler serves the auth.* procedures and the GitHub sign-in flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleMe             → the current caller, or null
//   - HandleLogout         → revoke the session and clear the cookie
//   - HandleGitHubLogin    → redirect the browser to GitHub
//   - HandleGitHubCallback → receive the code, sign the user in, set the cookie
//
// github is nil when no OAuth credentials are configured; the sign-in routes
// are then not registered at all.
type AuthHandler struct {
	auth         *service.AuthService
	github       *auth.GitHubProvider
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieSecure marks cookies Secure
// (HTTPS only); enable it in production.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		github:       github,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// HandleMe returns the caller's account, or null for anonymous requests.
//
// HTTP: GET /api/auth.me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user, ok := auth.UserFromContext(r.Context())
	metrics.ObserveProcedure("auth.me", start, nil)

	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleLogout ends the session. It needs no identity: clearing a cookie
// that is already gone still succeeds.
//
// HTTP: POST /api/auth.logout
//
// POST, not GET: logout changes state, and browsers pre-fetch GET links.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		h.auth.Logout(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	metrics.ObserveProcedure("auth.logout", start, nil)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived cookie and sent to GitHub. The
// callback only proceeds when GitHub echoes the same value back.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth sign-in.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. AuthService.SignIn upserts the account and issues a session token
//  4. Store the token in an HttpOnly cookie and redirect home
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Step 3: Upsert the account, issue the session ---
	result, err := h.auth.SignIn(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 4: Session cookie ---
	// HttpOnly: JavaScript cannot read it (XSS protection).
	// SameSite=Lax: sent on top-level navigations, not on cross-site POSTs.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.Session.ExpiresAt,
		MaxAge:   int(time.Until(result.Session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
