package server

import (
	"net/http"
	"time"
)

const (
	// CookieName is the name of the chat session cookie
	CookieName = "riseup_chat_session"
	// CookieMaxAge keeps the transcript reachable across visits for a month
	CookieMaxAge = 30 * 24 * time.Hour
	// SessionHeader carries the session id for clients that cannot use cookies
	SessionHeader = "X-Session-Id"
)

func sessionCookie(r *http.Request, sessionID string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r != nil && r.TLS != nil,
	}
}

// SetSessionCookie sets the HTTP-only chat session cookie
func SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, sessionCookie(r, sessionID, int(CookieMaxAge.Seconds())))
}

// GetSessionCookie reads the session ID from the cookie
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
