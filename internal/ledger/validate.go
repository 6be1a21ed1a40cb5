package ledger

import (
	"context"
	"fmt"

	"ev-go/internal/vaulterr"
)

// pageSize is how many events Validate reads per scan.
const pageSize = 500

// TamperError reports the first event whose stored fields do not verify.
type TamperError struct {
	Seq    int64
	Reason string
}

func (e *TamperError) Error() string {
	return fmt.Sprintf("%s at seq %d", e.Reason, e.Seq)
}

func (e *TamperError) Unwrap() error { return vaulterr.ErrHashMismatch }

// Verifier checks events one at a time in ascending seq order.
type Verifier struct {
	prev    string
	lastSeq int64
	count   int64
}

// NewVerifier returns a Verifier expecting the first event of a ledger.
func NewVerifier() *Verifier {
	return &Verifier{prev: GenesisHash}
}

// Next verifies e against the events seen so far.
func (v *Verifier) Next(e *Event) error {
	if v.count > 0 && e.Seq <= v.lastSeq {
		return vaulterr.New(vaulterr.CorruptVault, "events out of order: seq %d after %d", e.Seq, v.lastSeq)
	}
	if e.PrevHash != v.prev {
		return &TamperError{Seq: e.Seq, Reason: "prev_hash mismatch"}
	}
	if e.ComputeHash() != e.Hash {
		return &TamperError{Seq: e.Seq, Reason: "hash mismatch"}
	}
	v.prev = e.Hash
	v.lastSeq = e.Seq
	v.count++
	return nil
}

// Count returns the number of events verified.
func (v *Verifier) Count() int64 { return v.count }

// Tip returns the hash of the last verified event, or GenesisHash.
func (v *Verifier) Tip() string { return v.prev }

// Scanner reads events in ascending seq order.
type Scanner interface {
	// ListEvents returns up to limit events with seq > afterSeq.
	ListEvents(ctx context.Context, afterSeq int64, limit int) ([]Event, error)
}

// Validate scans the whole ledger and stops at the first event that fails
// verification. It returns the number of events verified.
func Validate(ctx context.Context, s Scanner) (int64, error) {
	v := NewVerifier()
	var after int64
	for {
		page, err := s.ListEvents(ctx, after, pageSize)
		if err != nil {
			return v.Count(), fmt.Errorf("scanning ledger: %w", err)
		}
		for i := range page {
			if err := v.Next(&page[i]); err != nil {
				return v.Count(), err
			}
			after = page[i].Seq
		}
		if len(page) < pageSize {
			return v.Count(), nil
		}
	}
}

// ValidateEvents verifies an in-memory slice that starts at the genesis event.
func ValidateEvents(events []Event) error {
	v := NewVerifier()
	for i := range events {
		if err := v.Next(&events[i]); err != nil {
			return err
		}
	}
	return nil
}
