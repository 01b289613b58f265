package account

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DelxAbde/panel-pal-translate/internal/logging"
)

// Session is what a successful login hands back to the client.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Service implements the mock login flow. Sessions are HS256 tokens whose
// subject is the user ID; logout revokes the token's ID.
type Service struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewService creates the account service. An empty secret is replaced by a
// random one.
func NewService(store UserStore, secret string, ttl time.Duration, logger *zap.SugaredLogger) (*Service, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{store: store, secret: key, ttl: ttl, logger: logging.OrNop(logger)}, nil
}

// Login accepts any password. The first login with an address creates its
// user; later logins return the same user and preferences.
func (s *Service) Login(email, password string) (*Session, error) {
	email, err := checkCredentials(email, password)
	if err != nil {
		return nil, err
	}

	u, err := s.store.GetByEmail(email)
	if errors.Is(err, ErrNotFound) {
		u = newUser(usernameFromEmail(email), email)
		if err := s.store.Set(u); err != nil {
			return nil, err
		}
		s.logger.Infow("user created on login", "userID", u.ID)
	} else if err != nil {
		return nil, err
	}

	return s.issue(u)
}

func (s *Service) Register(username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	email, err := checkCredentials(email, password)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetByEmail(email); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u := newUser(username, email)
	if err := s.store.Set(u); err != nil {
		return nil, err
	}
	s.logger.Infow("user registered", "userID", u.ID)
	return s.issue(u)
}

// Guest creates an anonymous user with default preferences.
func (s *Service) Guest() (*Session, error) {
	u := newUser(GuestUsername, "")
	u.Guest = true
	if err := s.store.Set(u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *Service) Logout(token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	until := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.store.Revoke(claims.ID, until)
}

// Authenticate returns the user a session token belongs to.
func (s *Service) Authenticate(token string) (*User, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if s.store.Revoked(claims.ID) {
		return nil, fmt.Errorf("%w: session revoked", ErrUnauthorized)
	}
	u, err := s.store.Get(claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", ErrUnauthorized)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(userID string) (*User, error) {
	return s.store.Get(userID)
}

func (s *Service) UpdatePreferences(userID string, prefs Preferences) (*User, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	u, err := s.store.Get(userID)
	if err != nil {
		return nil, err
	}
	u.Preferences = prefs
	if err := s.store.Set(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) issue(u *User) (*Session, error) {
	now := time.Now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expires.UTC(), User: u}, nil
}

func (s *Service) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: incomplete token", ErrUnauthorized)
	}
	return claims, nil
}

func checkCredentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if password == "" {
		return "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	return strings.ToLower(addr.Address), nil
}
