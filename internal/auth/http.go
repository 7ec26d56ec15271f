package auth

import (
	"context"
	"net/http"
	"time"
)

const CookieName = "hisab_session"

type (
	userKey  struct{}
	tokenKey struct{}
)

// WithUser returns ctx authenticated as u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user stored by Middleware or WithUser.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok && u.ID != ""
}

// Middleware resolves the session cookie into a user on the request context.
// Requests without a valid session pass through unauthenticated.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		sess, ok := s.Lookup(c.Value)
		if !ok {
			s.ClearCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		ctx := WithUser(r.Context(), sess.User)
		ctx = context.WithValue(ctx, tokenKey{}, sess.Token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require guards next: anonymous page loads are redirected to loginPath and
// anonymous HTMX requests get 401 with an HX-Redirect.
func Require(p Provider, loginPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := p.CurrentUser(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", loginPath)
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
	})
}

// SetCookie delivers the session token to the browser.
func (s *Service) SetCookie(w http.ResponseWriter, sess Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
