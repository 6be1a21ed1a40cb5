// Package ledger builds and validates the append-only, hash-chained audit log
// of a vault.
//
// Each event's hash is the SHA-256 of a fixed-field text form that includes
// the hash of the event before it, so altering any stored field of any event
// breaks the chain at that event's sequence number.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ev-go/internal/canonical"
	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// GenesisHash is the prev_hash of the first event in every ledger. It has the
// length of a real digest but cannot be produced by hashing anything we know.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// TimeLayout is the occurred_at format. Times are always UTC with millisecond
// precision so that the text sorts chronologically.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Event is a persisted audit event.
type Event struct {
	Seq         int64
	EventID     string
	VaultID     string
	OccurredAt  string
	Actor       string
	EventType   string
	PayloadJSON string
	PrevHash    string
	Hash        string
}

// CanonicalString returns the text that is hashed to produce e.Hash.
func (e *Event) CanonicalString() string {
	var b strings.Builder
	b.Grow(len(e.PayloadJSON) + 256)
	field := func(name, value string) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte('\n')
	}
	field("event_id", e.EventID)
	field("vault_id", e.VaultID)
	field("occurred_at", e.OccurredAt)
	field("actor", e.Actor)
	field("event_type", e.EventType)
	field("payload", e.PayloadJSON)
	field("prev_hash", e.PrevHash)
	return b.String()
}

// ComputeHash recomputes the digest of e from its stored fields.
func (e *Event) ComputeHash() string {
	return hasher.String(e.CanonicalString())
}

// Payload decodes the stored payload.
func (e *Event) Payload() (canonical.Value, error) {
	v, err := canonical.Decode(e.PayloadJSON)
	if err != nil {
		return canonical.Value{}, fmt.Errorf("event %d payload: %w", e.Seq, err)
	}
	return v, nil
}

// Draft describes an event that has not been chained yet.
type Draft struct {
	EventID    string
	VaultID    string
	OccurredAt time.Time
	Actor      string
	EventType  string
	Payload    canonical.Value
}

func (d *Draft) validate() error {
	switch {
	case d.EventID == "":
		return vaulterr.New(vaulterr.Validation, "event id is required")
	case d.VaultID == "":
		return vaulterr.New(vaulterr.Validation, "vault id is required")
	case strings.TrimSpace(d.Actor) == "":
		return vaulterr.New(vaulterr.Validation, "actor is required")
	case d.EventType == "":
		return vaulterr.New(vaulterr.Validation, "event type is required")
	case d.Payload.Kind() != canonical.KindObject:
		return vaulterr.New(vaulterr.Validation, "payload must be an object, got %s", d.Payload.Kind())
	case d.OccurredAt.IsZero():
		return vaulterr.New(vaulterr.Validation, "occurred_at is required")
	}
	return nil
}

// Tx is the part of an open store transaction the ledger writes through.
// Both calls must observe the same transaction as the domain mutation the
// event describes.
type Tx interface {
	// LatestEventHash returns the hash of the event with the highest seq,
	// or ok=false when the ledger is empty.
	LatestEventHash(ctx context.Context) (hash string, ok bool, err error)

	// InsertEvent stores e and returns the seq assigned by the store.
	InsertEvent(ctx context.Context, e *Event) (int64, error)
}

// Append chains d onto the ledger inside tx and returns the stored event.
// The tip is read through tx rather than cached, so the read and the insert
// commit or roll back together with the caller's mutation.
func Append(ctx context.Context, tx Tx, d Draft) (*Event, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	prev, ok, err := tx.LatestEventHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading chain tip: %w", err)
	}
	if !ok {
		prev = GenesisHash
	}

	e := &Event{
		EventID:     d.EventID,
		VaultID:     d.VaultID,
		OccurredAt:  d.OccurredAt.UTC().Format(TimeLayout),
		Actor:       d.Actor,
		EventType:   d.EventType,
		PayloadJSON: d.Payload.Encode(),
		PrevHash:    prev,
	}
	e.Hash = e.ComputeHash()

	seq, err := tx.InsertEvent(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("inserting %s event: %w", e.EventType, err)
	}
	e.Seq = seq
	return e, nil
}
