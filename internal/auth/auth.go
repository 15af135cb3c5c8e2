// Package auth manages user accounts and the active session.
//
// Passwords are stored as bcrypt hashes. Each user also carries a recovery
// token that signs them in without a password; it rotates on every login.
// Scripted CLI use can trade the session for a signed, expiring JWT.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"notely/internal/model"
	"notely/internal/storage"
)

const (
	DefaultTokenTTL = 24 * time.Hour
	issuer          = "notely"
)

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func WithIDs(next func() string) Option {
	return func(g *Gate) { g.newID = next }
}

// WithCost sets the bcrypt cost. Values outside bcrypt's range fall back to
// bcrypt.DefaultCost.
func WithCost(cost int) Option {
	return func(g *Gate) {
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			cost = bcrypt.DefaultCost
		}
		g.cost = cost
	}
}

func WithSecret(secret string) Option {
	return func(g *Gate) { g.secret = []byte(secret) }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

type Gate struct {
	store  *storage.Store
	now    func() time.Time
	newID  func() string
	cost   int
	secret []byte
	ttl    time.Duration

	mu sync.Mutex
}

type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

func New(store *storage.Store, opts ...Option) *Gate {
	g := &Gate{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
		cost:  bcrypt.DefaultCost,
		ttl:   DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Register(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, fmt.Errorf("%w: username and password are required", model.ErrValidation)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	users, err := g.store.LoadUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	if findByName(users, username) >= 0 {
		return model.User{}, model.ErrDuplicateUsername
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	token, err := newRecoveryToken()
	if err != nil {
		return model.User{}, err
	}
	now := g.now().UTC()
	u := model.User{
		ID:           g.newID(),
		Username:     username,
		PasswordHash: string(hash),
		Token:        token,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := g.store.SaveUsers(ctx, append(users, u)); err != nil {
		return model.User{}, err
	}
	if err := g.store.SaveSession(ctx, u.Public()); err != nil {
		return model.User{}, err
	}
	log.WithFields(log.Fields{"user": u.ID, "username": u.Username}).Info("user registered")
	return u, nil
}

// Login checks the password and rotates the user's recovery token.
// Unknown users and wrong passwords fail the same way.
func (g *Gate) Login(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)

	g.mu.Lock()
	defer g.mu.Unlock()
	users, err := g.store.LoadUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	i := findByName(users, username)
	if i < 0 {
		return model.User{}, model.ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(password)); err != nil {
		log.WithField("username", username).Debug("password mismatch")
		return model.User{}, model.ErrInvalidCredential
	}
	token, err := newRecoveryToken()
	if err != nil {
		return model.User{}, err
	}
	u := users[i]
	u.Token = token
	u.UpdatedAt = bump(g.now(), u.UpdatedAt)
	users[i] = u
	if err := g.store.SaveUsers(ctx, users); err != nil {
		return model.User{}, err
	}
	if err := g.store.SaveSession(ctx, u.Public()); err != nil {
		return model.User{}, err
	}
	log.WithField("user", u.ID).Info("user logged in")
	return u, nil
}

// Recover signs in the user holding the given recovery token.
func (g *Gate) Recover(ctx context.Context, token string) (model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.User{}, model.ErrInvalidToken
	}
	users, err := g.store.LoadUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	i := slices.IndexFunc(users, func(u model.User) bool { return u.Token == token })
	if i < 0 {
		return model.User{}, model.ErrInvalidToken
	}
	if err := g.store.SaveSession(ctx, users[i].Public()); err != nil {
		return model.User{}, err
	}
	log.WithField("user", users[i].ID).Info("session recovered")
	return users[i], nil
}

func (g *Gate) Logout(ctx context.Context) error {
	return g.store.ClearSession(ctx)
}

// CurrentUser resolves the session against the user list so profile edits
// made elsewhere are visible. A session for a removed user counts as none.
func (g *Gate) CurrentUser(ctx context.Context) (model.User, error) {
	sess, ok, err := g.store.LoadSession(ctx)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return model.User{}, model.ErrUnauthenticated
	}
	users, err := g.store.LoadUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	i := slices.IndexFunc(users, func(u model.User) bool { return u.ID == sess.ID })
	if i < 0 {
		return model.User{}, model.ErrUnauthenticated
	}
	return users[i], nil
}

func (g *Gate) CurrentUserID(ctx context.Context) (string, bool) {
	u, err := g.CurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrUnauthenticated) {
			log.WithError(err).Warn("reading session failed")
		}
		return "", false
	}
	return u.ID, true
}

func (g *Gate) UpdateProfile(ctx context.Context, patch model.ProfilePatch) (model.User, error) {
	cur, err := g.CurrentUser(ctx)
	if err != nil {
		return model.User{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	users, err := g.store.LoadUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	i := slices.IndexFunc(users, func(u model.User) bool { return u.ID == cur.ID })
	if i < 0 {
		return model.User{}, model.ErrUnauthenticated
	}
	u := users[i]
	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if name == "" {
			return model.User{}, fmt.Errorf("%w: username is required", model.ErrValidation)
		}
		if name != u.Username && findByName(users, name) >= 0 {
			return model.User{}, model.ErrDuplicateUsername
		}
		u.Username = name
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return model.User{}, fmt.Errorf("%w: password is required", model.ErrValidation)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), g.cost)
		if err != nil {
			return model.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	u.UpdatedAt = bump(g.now(), u.UpdatedAt)
	users[i] = u
	if err := g.store.SaveUsers(ctx, users); err != nil {
		return model.User{}, err
	}
	if err := g.store.SaveSession(ctx, u.Public()); err != nil {
		return model.User{}, err
	}
	log.WithField("user", u.ID).Info("profile updated")
	return u, nil
}

// IssueToken signs an HS256 token naming the user as subject.
func (g *Gate) IssueToken(u model.User) (string, error) {
	if len(g.secret) == 0 {
		return "", errors.New("session secret is not configured")
	}
	now := g.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
		Username: u.Username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(g.secret)
}

// Authenticate verifies a token from IssueToken and returns the user id.
// The user must still exist.
func (g *Gate) Authenticate(ctx context.Context, token string) (string, error) {
	if len(g.secret) == 0 {
		return "", model.ErrInvalidToken
	}
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid || c.Subject == "" {
		log.WithError(err).Debug("token rejected")
		return "", model.ErrInvalidToken
	}
	users, err := g.store.LoadUsers(ctx)
	if err != nil {
		return "", err
	}
	if !slices.ContainsFunc(users, func(u model.User) bool { return u.ID == c.Subject }) {
		return "", model.ErrInvalidToken
	}
	return c.Subject, nil
}

func findByName(users []model.User, name string) int {
	return slices.IndexFunc(users, func(u model.User) bool { return u.Username == name })
}

func newRecoveryToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func bump(now, prev time.Time) time.Time {
	now = now.UTC()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}
