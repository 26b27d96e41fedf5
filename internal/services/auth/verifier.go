package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/dneufang33/mira-sora-visions/internal/infra/httpclient"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("auth provider unavailable")
)

type Config struct {
	SupabaseURL   string
	AnonKey       string
	JWTSecret     string
	RemoteTimeout time.Duration
}

// Verifier checks Supabase access tokens. Tokens are verified locally with the
// project secret when one is configured; otherwise, or when local verification
// fails, the auth server is asked for the user behind the token.
type Verifier struct {
	cfg    Config
	secret []byte
	http   *http.Client
	now    func() time.Time
}

type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func NewVerifier(cfg Config) *Verifier {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 10 * time.Second
	}
	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(cfg.SupabaseURL), "/")

	return &Verifier{
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		http:   httpclient.New(cfg.RemoteTimeout),
		now:    time.Now,
	}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrUnauthorized
	}

	if len(v.secret) > 0 {
		identity, err := v.verifyLocal(raw)
		if err == nil {
			return identity, nil
		}
		if v.cfg.SupabaseURL == "" {
			return Identity{}, err
		}
	}
	if v.cfg.SupabaseURL == "" {
		return Identity{}, ErrUnavailable
	}

	return v.verifyRemote(ctx, raw)
}

func (v *Verifier) verifyLocal(raw string) (Identity, error) {
	claims := &supabaseClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || token == nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}

	return buildIdentity(claims.Subject, claims.Email, claims.Role)
}

func (v *Verifier) verifyRemote(ctx context.Context, raw string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.SupabaseURL+"/auth/v1/user", nil)
	if err != nil {
		return Identity{}, ErrUnavailable
	}
	req.Header.Set("Authorization", "Bearer "+raw)
	if v.cfg.AnonKey != "" {
		req.Header.Set("apikey", v.cfg.AnonKey)
	}

	body, err := httpclient.Do(v.http, "supabase get user", req)
	if err != nil {
		var reqErr *httpclient.RequestError
		if errors.As(err, &reqErr) && (reqErr.StatusCode == http.StatusUnauthorized || reqErr.StatusCode == http.StatusForbidden) {
			return Identity{}, ErrUnauthorized
		}
		return Identity{}, errors.Join(ErrUnavailable, err)
	}

	user := gjson.ParseBytes(body)
	return buildIdentity(user.Get("id").String(), user.Get("email").String(), user.Get("role").String())
}

func buildIdentity(userID, email, role string) (Identity, error) {
	userID = strings.TrimSpace(userID)
	email = strings.ToLower(strings.TrimSpace(email))
	if userID == "" || email == "" {
		return Identity{}, ErrUnauthorized
	}
	if role == "" {
		role = "authenticated"
	}
	return Identity{UserID: userID, Email: email, Role: role}, nil
}
