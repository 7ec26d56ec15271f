package http

import (
	"errors"
	"net/http"
	"net/url"

	"hisab/internal/auth"
	"hisab/internal/log"
)

const (
	modeSignIn = "signin"
	modeSignUp = "signup"

	noticeLoggedOut = "logged_out"
)

func (s *Server) handleAuthPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.CurrentUser(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := authData{Title: "Sign In", Mode: modeSignIn}
	if r.URL.Query().Get("mode") == modeSignUp {
		data.Mode = modeSignUp
		data.Title = "Sign Up"
	}
	if r.URL.Query().Get("notice") == noticeLoggedOut {
		data.Notice = "Logged out successfully"
	}
	s.render(w, r, NewHTMXResponse(), "auth.html", data)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	p, fail := parseBody(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	email := p.Get("email")

	sess, err := s.auth.SignIn(r.Context(), email, p.GetRaw("password"))
	if err != nil {
		s.authFailed(w, r, err, authData{Title: "Sign In", Mode: modeSignIn, Email: email})
		return
	}
	s.signedIn(w, r, sess)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	p, fail := parseBody(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	email, fullName := p.Get("email"), p.Get("full_name")

	sess, err := s.auth.SignUp(r.Context(), email, p.GetRaw("password"), fullName)
	if err != nil {
		s.authFailed(w, r, err, authData{Title: "Sign Up", Mode: modeSignUp, Email: email, FullName: fullName})
		return
	}
	s.signedIn(w, r, sess)
}

func (s *Server) signedIn(w http.ResponseWriter, r *http.Request, sess auth.Session) {
	s.auth.SetCookie(w, sess)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// authFailed re-renders the auth page with the reason. Unknown failures get
// a generic message.
func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, err error, data authData) {
	status := http.StatusUnprocessableEntity
	msg, known := auth.ValidationMessage(err)
	switch {
	case !known:
		status = http.StatusInternalServerError
		msg = "Authentication failed, please try again"
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Authentication failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal)
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}
	data.Error = msg
	s.render(w, r, NewHTMXResponse().Status(status), "auth.html", data)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Sign out failed", log.FieldError, err)
	}
	s.auth.ClearCookie(w)

	target := loginPath + "?" + url.Values{"notice": {noticeLoggedOut}}.Encode()
	if isHTMX(r) {
		NewHTMXResponse().
			Redirect(target).
			TriggerSuccessNotification("Logged out successfully").
			Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
