package device

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned for unknown devices.
var ErrNotFound = errors.New("device: not found")

// ErrBadSecret is returned when a device presents the wrong secret.
var ErrBadSecret = errors.New("device: secret mismatch")

// Device is a provisioned kiosk terminal.
type Device struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenantId"`
	Label      string     `json:"label"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// Service provisions kiosk devices and verifies their secrets. Secrets are
// shown once at provisioning time and stored only as argon2id hashes.
type Service struct {
	Pool *pgxpool.Pool
}

// Provision registers a device and returns it with the plaintext secret.
func (s *Service) Provision(ctx context.Context, tenantID, label string) (Device, string, error) {
	secret, err := newSecret()
	if err != nil {
		return Device{}, "", fmt.Errorf("generate secret: %w", err)
	}
	hash, err := argon2id.CreateHash(secret, argon2id.DefaultParams)
	if err != nil {
		return Device{}, "", fmt.Errorf("hash secret: %w", err)
	}
	d := Device{ID: uuid.NewString(), TenantID: tenantID, Label: label, CreatedAt: time.Now().UTC()}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO kiosk_devices (id, tenant_id, label, secret_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.TenantID, d.Label, hash, d.CreatedAt)
	if err != nil {
		return Device{}, "", fmt.Errorf("insert device: %w", err)
	}
	return d, secret, nil
}

// Authenticate verifies a device secret and returns the device. A successful
// check stamps last_seen_at for fleet monitoring.
func (s *Service) Authenticate(ctx context.Context, deviceID, secret string) (Device, error) {
	var d Device
	var hash string
	err := s.Pool.QueryRow(ctx,
		`SELECT id, tenant_id, label, secret_hash, created_at, last_seen_at
		 FROM kiosk_devices WHERE id = $1`,
		deviceID).Scan(&d.ID, &d.TenantID, &d.Label, &hash, &d.CreatedAt, &d.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, fmt.Errorf("load device: %w", err)
	}
	match, err := argon2id.ComparePasswordAndHash(secret, hash)
	if err != nil {
		return Device{}, fmt.Errorf("compare secret: %w", err)
	}
	if !match {
		return Device{}, ErrBadSecret
	}
	_, _ = s.Pool.Exec(ctx, `UPDATE kiosk_devices SET last_seen_at = now() WHERE id = $1`, d.ID)
	return d, nil
}

// List returns the tenant's provisioned devices.
func (s *Service) List(ctx context.Context, tenantID string) ([]Device, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, tenant_id, label, created_at, last_seen_at
		 FROM kiosk_devices WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()
	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Label, &d.CreatedAt, &d.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// Revoke deletes a device so its secret stops working.
func (s *Service) Revoke(ctx context.Context, tenantID, id string) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM kiosk_devices WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("revoke device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
