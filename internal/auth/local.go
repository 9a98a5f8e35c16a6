package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/katemorely/tastebase/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already exists with this email")
)

// localUser is the persisted credential record
type localUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHMAC string    `json:"password_hmac"`
	CreatedAt    time.Time `json:"created_at"`
}

// Local verifies credentials against the shared key-value store. It exists
// for development and tests; hosted deployments use the OAuth provider.
type Local struct {
	store    storage.Store
	secret   []byte
	notifier *Notifier
}

func NewLocal(store storage.Store, secret []byte, notifier *Notifier) *Local {
	return &Local{store: store, secret: secret, notifier: notifier}
}

func userKey(email string) string {
	return "user_" + strings.ToLower(strings.TrimSpace(email))
}

func (l *Local) digest(password string) string {
	mac := hmac.New(sha256.New, l.secret)
	mac.Write([]byte(password))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Register creates a credential record and signs the new user in
func (l *Local) Register(ctx context.Context, email, password, displayName string) (*Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if _, ok, err := l.store.Get(ctx, userKey(email)); err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	} else if ok {
		return nil, ErrUserExists
	}

	u := localUser{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHMAC: l.digest(password),
		CreatedAt:    time.Now().UTC(),
	}
	b, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	if err := l.store.Set(ctx, userKey(email), b); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}

	ident := &Identity{UserID: u.ID, DisplayName: u.DisplayName}
	l.notifier.Publish(ident)
	return ident, nil
}

// Login checks credentials and signs the user in
func (l *Local) Login(ctx context.Context, email, password string) (*Identity, error) {
	b, ok, err := l.store.Get(ctx, userKey(email))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	var u localUser
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if !hmac.Equal([]byte(u.PasswordHMAC), []byte(l.digest(password))) {
		return nil, ErrInvalidCredentials
	}

	ident := &Identity{UserID: u.ID, DisplayName: u.DisplayName}
	l.notifier.Publish(ident)
	return ident, nil
}

// SignOut publishes a nil identity
func (l *Local) SignOut() {
	l.notifier.Publish(nil)
}
