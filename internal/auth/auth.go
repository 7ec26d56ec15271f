// Package auth provides the current-user contract and its password/session
// implementation.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"hisab/internal/cache"
	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/store"
)

// User is the authenticated principal.
type User struct {
	ID       string
	Email    string
	FullName string
}

// DisplayName is the name shown in the welcome line.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// Provider is what the rest of the application needs from authentication.
type Provider interface {
	CurrentUser(ctx context.Context) (User, bool)
	SignOut(ctx context.Context) error
}

const (
	MinPasswordLen = 6
	MaxFullNameLen = 100
)

var (
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	ErrEmailTaken         = errors.New("User already registered")
	ErrInvalidEmail       = errors.New("Email address is invalid")
	ErrWeakPassword       = fmt.Errorf("Password should be at least %d characters", MinPasswordLen)
	ErrFullNameTooLong    = fmt.Errorf("Full name must be at most %d characters", MaxFullNameLen)
)

// Session is a signed-in browser.
type Session struct {
	Token     string
	User      User
	ExpiresAt time.Time
}

type Options struct {
	SessionTTL   time.Duration
	CookieSecure bool
	BcryptCost   int
}

// Service authenticates users against the users collection and keeps
// sessions in memory. Sessions do not survive a restart.
type Service struct {
	store    store.Store
	sessions *cache.LRUCache[Session]
	ttl      time.Duration
	secure   bool
	cost     int
	logger   *log.Logger

	dummyOnce sync.Once
	dummy     []byte
}

var _ Provider = (*Service)(nil)

const maxSessions = 10000

func NewService(st store.Store, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:    st,
		sessions: cache.NewLRUCache[Session](maxSessions, opts.SessionTTL),
		ttl:      opts.SessionTTL,
		secure:   opts.CookieSecure,
		cost:     opts.BcryptCost,
		logger:   log.WithComponent(log.ComponentAuth),
	}
}

// Sessions exposes the session cache so it can join the cleanup cycle.
func (s *Service) Sessions() cache.Cleaner {
	return s.sessions
}

// SignUp registers a user and opens a session for them.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return Session{}, ErrWeakPassword
	}
	fullName = strings.TrimSpace(fullName)
	if utf8.RuneCountInString(fullName) > MaxFullNameLen {
		return Session{}, ErrFullNameTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{ID: uuid.NewString(), Email: email, FullName: fullName}
	err = s.store.Insert(store.WithServiceRole(ctx), store.Users, store.Record{
		"id":            user.ID,
		"email":         user.Email,
		"password_hash": string(hash),
		"full_name":     user.FullName,
		"created_at":    time.Now().UTC(),
	})
	if errors.Is(err, store.ErrConflict) {
		return Session{}, ErrEmailTaken
	}
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, user.ID, log.FieldOperation, log.OpSignUp)
	return s.open(user)
}

// SignIn checks credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}

	rows, err := s.store.Query(store.WithServiceRole(ctx), store.Users, store.Query{
		Filters: []store.Filter{store.Eq("email", email)},
	})
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if len(rows) == 0 {
		// Burn comparable time so unknown emails are not distinguishable.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(password))
		return Session{}, ErrInvalidCredentials
	}
	row := rows[0]
	if err := bcrypt.CompareHashAndPassword([]byte(row.String("password_hash")), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	user := User{ID: row.String("id"), Email: row.String("email"), FullName: row.String("full_name")}
	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, user.ID, log.FieldOperation, log.OpSignIn)
	return s.open(user)
}

// Lookup returns the live session for token.
func (s *Service) Lookup(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	return s.sessions.Get(token)
}

// CurrentUser returns the user the request context was authenticated as.
func (s *Service) CurrentUser(ctx context.Context) (User, bool) {
	return UserFrom(ctx)
}

// SignOut ends the session carried by ctx. Signing out twice is harmless.
func (s *Service) SignOut(ctx context.Context) error {
	token, ok := ctx.Value(tokenKey{}).(string)
	if !ok || token == "" {
		return nil
	}
	s.sessions.Delete(token)
	if u, ok := UserFrom(ctx); ok {
		s.logger.InfoContext(ctx, "User signed out", log.FieldUserID, u.ID, log.FieldOperation, log.OpSignOut)
	}
	return nil
}

func (s *Service) open(user User) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	sess := Session{Token: token, User: user, ExpiresAt: time.Now().Add(s.ttl)}
	s.sessions.Set(token, sess)
	return sess, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (s *Service) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummy, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cost)
	})
	return s.dummy
}

// ValidationMessage maps auth errors to the text shown on the auth page.
func ValidationMessage(err error) (string, bool) {
	for _, target := range []error{ErrInvalidCredentials, ErrEmailTaken, ErrInvalidEmail, ErrWeakPassword, ErrFullNameTooLong} {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return verr.Message, true
	}
	return "", false
}
