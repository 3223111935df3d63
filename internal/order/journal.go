package order

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// JournalEntry captures a charge that succeeded on the terminal but whose
// order could not be written to Postgres. Staff reconcile these manually.
type JournalEntry struct {
	TenantID   string    `json:"tenantId"`
	PaymentRef string    `json:"paymentRef"`
	Amount     int64     `json:"amount"`
	Draft      *Order    `json:"draft"`
	FailedAt   time.Time `json:"failedAt"`
	Reason     string    `json:"reason"`
}

// Journal records paid-but-unrecorded orders in Redis. Postgres just failed
// for these entries, so the journal deliberately lives elsewhere; if Redis is
// down too the full draft lands in the log as the last line of defense.
type Journal struct {
	Client *redis.Client
	Log    zerolog.Logger
}

func journalKey(tenantID string) string {
	return "orders:journal:" + tenantID
}

// fallbackLog is the last resort for a nil or unconfigured journal; losing the
// record of a captured charge is never acceptable, so it goes to stderr.
var fallbackLog = zerolog.New(os.Stderr).With().Timestamp().Logger()

func (j *Journal) logger() *zerolog.Logger {
	if j == nil {
		return &fallbackLog
	}
	return &j.Log
}

func (j *Journal) client() *redis.Client {
	if j == nil {
		return nil
	}
	return j.Client
}

// Record appends the entry to the tenant's journal list. It never returns an
// error and never panics, even on a nil receiver; a charge already happened
// and there is nothing useful a caller could do with a failure here.
func (j *Journal) Record(ctx context.Context, entry JournalEntry) {
	log := j.logger()
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("payment_ref", entry.PaymentRef).Msg("journal marshal failed")
		return
	}
	if client := j.client(); client != nil {
		if err := client.RPush(ctx, journalKey(entry.TenantID), payload).Err(); err == nil {
			log.Warn().
				Str("tenant_id", entry.TenantID).
				Str("payment_ref", entry.PaymentRef).
				Int64("amount", entry.Amount).
				Msg("order journaled as paid-unrecorded")
			return
		}
	}
	log.Error().
		Str("tenant_id", entry.TenantID).
		Str("payment_ref", entry.PaymentRef).
		Int64("amount", entry.Amount).
		RawJSON("entry", payload).
		Msg("journal write failed, entry preserved in log")
}

// Pending returns up to limit journaled entries for reconciliation.
func (j *Journal) Pending(ctx context.Context, tenantID string, limit int) ([]JournalEntry, error) {
	if j == nil || j.Client == nil {
		return nil, nil
	}
	if limit < 1 {
		limit = 100
	}
	raw, err := j.Client.LRange(ctx, journalKey(tenantID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]JournalEntry, 0, len(raw))
	for _, item := range raw {
		var entry JournalEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Resolve drops the oldest matching entry once staff have reconciled it.
func (j *Journal) Resolve(ctx context.Context, tenantID, paymentRef string) error {
	if j == nil || j.Client == nil {
		return nil
	}
	raw, err := j.Client.LRange(ctx, journalKey(tenantID), 0, -1).Result()
	if err != nil {
		return err
	}
	for _, item := range raw {
		var entry JournalEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		if entry.PaymentRef == paymentRef {
			return j.Client.LRem(ctx, journalKey(tenantID), 1, item).Err()
		}
	}
	return nil
}
