package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"hisab/internal/store/memory"
)

func newTestService() *Service {
	return NewService(memory.New(), Options{SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost})
}

func TestSignUpAndSignIn(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	sess, err := s.SignUp(ctx, "  Ayesha@Example.com ", "secret1", "Ayesha Rahman")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if sess.User.Email != "ayesha@example.com" || sess.User.DisplayName() != "Ayesha Rahman" {
		t.Fatalf("unexpected user %+v", sess.User)
	}
	if _, ok := s.Lookup(sess.Token); !ok {
		t.Fatal("sign up should open a session")
	}

	again, err := s.SignIn(ctx, "ayesha@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if again.User.ID != sess.User.ID || again.Token == sess.Token {
		t.Fatalf("sign in should open a new session for the same user")
	}
}

func TestSignUpValidation(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		fullName string
		want     error
	}{
		{"bad email", "not-an-email", "secret1", "", ErrInvalidEmail},
		{"short password", "a@example.com", "12345", "", ErrWeakPassword},
		{"long name", "a@example.com", "secret1", string(make([]rune, 101)), ErrFullNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SignUp(ctx, tt.email, tt.password, tt.fullName)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if msg, ok := ValidationMessage(err); !ok || msg != tt.want.Error() {
				t.Fatalf("message %q %v", msg, ok)
			}
		})
	}

	if _, err := s.SignUp(ctx, "dup@example.com", "secret1", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SignUp(ctx, "DUP@example.com", "secret2", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	if _, err := s.SignUp(ctx, "a@example.com", "secret1", ""); err != nil {
		t.Fatal(err)
	}

	for _, c := range [][2]string{
		{"a@example.com", "wrong-password"},
		{"nobody@example.com", "secret1"},
		{"garbage", "secret1"},
	} {
		if _, err := s.SignIn(ctx, c[0], c[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%v: expected ErrInvalidCredentials, got %v", c, err)
		}
	}
}

func TestMiddlewareAndSignOut(t *testing.T) {
	s := newTestService()
	sess, err := s.SignUp(context.Background(), "a@example.com", "secret1", "A")
	if err != nil {
		t.Fatal(err)
	}

	var seen User
	var signOutErr error
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = s.CurrentUser(r.Context())
		signOutErr = s.SignOut(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.Token})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen.ID != sess.User.ID {
		t.Fatalf("middleware did not resolve the session user")
	}
	if signOutErr != nil {
		t.Fatalf("sign out: %v", signOutErr)
	}
	if _, ok := s.Lookup(sess.Token); ok {
		t.Fatal("session should be gone after sign out")
	}

	// A stale cookie is cleared and the request continues anonymously.
	rec := httptest.NewRecorder()
	seen = User{}
	h.ServeHTTP(rec, req)
	if seen.ID != "" {
		t.Fatal("stale session must not authenticate")
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Fatalf("expected the cookie to be cleared, got %v", c)
	}
}

func TestRequire(t *testing.T) {
	s := newTestService()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require(s, "/auth", ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/auth" {
		t.Fatalf("page load: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/ui/transactions", nil)
	req.Header.Set("HX-Request", "true")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("HX-Redirect") != "/auth" {
		t.Fatalf("htmx request: %d %q", rec.Code, rec.Header().Get("HX-Redirect"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), User{ID: "u1"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("authenticated request: %d", rec.Code)
	}
}
