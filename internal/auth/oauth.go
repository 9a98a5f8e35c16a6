package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OAuthConfig configures the hosted identity provider. The provider is
// opaque beyond its OAuth2 endpoints and a userinfo URL.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	StateSecret  string
}

// OAuth adapts a hosted identity provider to the Notifier contract
type OAuth struct {
	conf        *oauth2.Config
	userInfoURL string
	stateSecret []byte
	notifier    *Notifier
	http        *http.Client
}

func NewOAuth(cfg OAuthConfig, notifier *Notifier) *OAuth {
	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		stateSecret: []byte(cfg.StateSecret),
		notifier:    notifier,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL returns the provider URL to redirect the browser to. The
// state carries returnTo behind an HMAC signature with an expiry.
func (o *OAuth) AuthCodeURL(returnTo string, ttl time.Duration) string {
	state := o.signState(returnTo, time.Now().Add(ttl))
	return o.conf.AuthCodeURL(state)
}

// HandleCallback verifies state, exchanges the code and publishes the
// resulting identity. It returns the identity and the returnTo path the
// flow started with.
func (o *OAuth) HandleCallback(ctx context.Context, code, state string) (*Identity, string, error) {
	returnTo, ok := o.verifyState(state)
	if !ok {
		return nil, "", errors.New("invalid state")
	}

	tok, err := o.conf.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("token exchange: %w", err)
	}

	ident, err := o.fetchIdentity(ctx, tok)
	if err != nil {
		return nil, "", err
	}

	o.notifier.Publish(ident)
	return ident, returnTo, nil
}

// SignOut publishes a nil identity. The hosted provider keeps its own
// session; this only ends ours.
func (o *OAuth) SignOut() {
	o.notifier.Publish(nil)
}

// fetchIdentity resolves the token to a user via the userinfo endpoint.
// Providers disagree on field names, so both "sub" and "id" are accepted.
func (o *OAuth) fetchIdentity(ctx context.Context, tok *oauth2.Token) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	tok.SetAuthHeader(req)

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}

	ident := &Identity{}
	switch v := info["sub"].(type) {
	case string:
		ident.UserID = v
	case float64:
		ident.UserID = strconv.FormatInt(int64(v), 10)
	}
	if ident.UserID == "" {
		switch v := info["id"].(type) {
		case string:
			ident.UserID = v
		case float64:
			ident.UserID = strconv.FormatInt(int64(v), 10)
		}
	}
	if ident.UserID == "" {
		return nil, errors.New("userinfo response has no user id")
	}
	if name, ok := info["name"].(string); ok {
		ident.DisplayName = name
	}
	return ident, nil
}

func (o *OAuth) signState(returnTo string, exp time.Time) string {
	msg := returnTo + "|" + strconv.FormatInt(exp.Unix(), 10)
	mac := hmac.New(sha256.New, o.stateSecret)
	mac.Write([]byte(msg))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	pl := base64.RawURLEncoding.EncodeToString([]byte(msg))
	return pl + "." + sig
}

func (o *OAuth) verifyState(state string) (returnTo string, ok bool) {
	parts := strings.SplitN(state, ".", 2)
	if len(parts) != 2 {
		return
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return
	}

	mac := hmac.New(sha256.New, o.stateSecret)
	mac.Write(payload)

	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return
	}

	// returnTo may itself contain "|"; the expiry is always the last field
	sep := strings.LastIndex(string(payload), "|")
	if sep < 0 {
		return
	}

	returnTo = string(payload[:sep])
	expUnix, err := strconv.ParseInt(string(payload[sep+1:]), 10, 64)
	if err != nil {
		return
	}
	if time.Now().After(time.Unix(expUnix, 0)) {
		return
	}

	ok = true
	return
}
