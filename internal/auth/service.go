package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/orderhub-dev/backend-kiosk/internal/common"
)

// Staff is a back-office account scoped to one tenant.
type Staff struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string
	Role         string
}

// Service authenticates back-office staff and issues access tokens.
type Service struct {
	pool      *pgxpool.Pool
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
}

// Config configures the auth service.
type Config struct {
	Pool      *pgxpool.Pool
	Secret    string
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// NewService constructs the auth service.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &Service{
		pool:      cfg.Pool,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: cfg.ClockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}, nil
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, tenantID, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", common.NewAppError("UNAUTHORIZED", "invalid credentials", http.StatusUnauthorized, nil)
	}
	staff, err := s.staffByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.NewAppError("UNAUTHORIZED", "invalid credentials", http.StatusUnauthorized, err)
		}
		return "", fmt.Errorf("load staff: %w", err)
	}
	match, err := argon2id.ComparePasswordAndHash(password, staff.PasswordHash)
	if err != nil || !match {
		return "", common.NewAppError("UNAUTHORIZED", "invalid credentials", http.StatusUnauthorized, err)
	}
	return s.issueToken(staff)
}

func (s *Service) staffByEmail(ctx context.Context, tenantID, email string) (Staff, error) {
	var staff Staff
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, email, password_hash, role
		 FROM staff WHERE tenant_id = $1 AND email = $2`,
		tenantID, email).Scan(&staff.ID, &staff.TenantID, &staff.Email, &staff.PasswordHash, &staff.Role)
	return staff, err
}

func (s *Service) issueToken(staff Staff) (string, error) {
	now := s.now()
	builder := jwt.NewBuilder().
		Subject(staff.ID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(s.accessTTL)).
		Claim("tenant_id", staff.TenantID).
		Claim("role", staff.Role)
	if s.issuer != "" {
		builder = builder.Issuer(s.issuer)
	}
	if s.audience != "" {
		builder = builder.Audience([]string{s.audience})
	}
	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Claims are the verified facts extracted from an access token.
type Claims struct {
	StaffID  string
	TenantID string
	Role     string
}

// ParseAccessToken verifies the token and returns its claims.
func (s *Service) ParseAccessToken(raw string) (Claims, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized,
			fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	claims := Claims{StaffID: parsed.Subject()}
	if v, ok := parsed.Get("tenant_id"); ok {
		if str, ok := v.(string); ok {
			claims.TenantID = str
		}
	}
	if v, ok := parsed.Get("role"); ok {
		if str, ok := v.(string); ok {
			claims.Role = str
		}
	}
	return claims, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", errors.New("auth: malformed token")
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("auth: decode header: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return "", fmt.Errorf("auth: parse header: %w", err)
	}
	if header.Alg == "" {
		return "", errors.New("auth: token missing algorithm")
	}
	return jwa.SignatureAlgorithm(header.Alg), nil
}
