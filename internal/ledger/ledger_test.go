package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ev-go/internal/canonical"
	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// memLedger is an in-memory Tx and Scanner.
type memLedger struct {
	events  []Event
	failTip error
}

func (m *memLedger) LatestEventHash(context.Context) (string, bool, error) {
	if m.failTip != nil {
		return "", false, m.failTip
	}
	if len(m.events) == 0 {
		return "", false, nil
	}
	return m.events[len(m.events)-1].Hash, true, nil
}

func (m *memLedger) InsertEvent(_ context.Context, e *Event) (int64, error) {
	stored := *e
	stored.Seq = int64(len(m.events) + 1)
	m.events = append(m.events, stored)
	return stored.Seq, nil
}

func (m *memLedger) ListEvents(_ context.Context, afterSeq int64, limit int) ([]Event, error) {
	var out []Event
	for _, e := range m.events {
		if e.Seq > afterSeq && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

var baseTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func draft(i int) Draft {
	return Draft{
		EventID:    fmt.Sprintf("01HQ0000000000000000000%03d", i),
		VaultID:    "01HQVAULT00000000000000000",
		OccurredAt: baseTime.Add(time.Duration(i) * time.Millisecond),
		Actor:      "alice",
		EventType:  "EvidenceAdded",
		Payload:    canonical.Object(canonical.F("n", canonical.Int(int64(i)))),
	}
}

func appendN(t *testing.T, m *memLedger, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if _, err := Append(context.Background(), m, draft(i)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
}

func TestEvent_CanonicalString(t *testing.T) {
	e := Event{
		EventID:     "E1",
		VaultID:     "V1",
		OccurredAt:  "2024-01-15T10:30:00.000Z",
		Actor:       "alice",
		EventType:   "VaultCreated",
		PayloadJSON: `{"name":"Acme","vault_id":"V1"}`,
		PrevHash:    GenesisHash,
	}
	want := "event_id=E1\nvault_id=V1\noccurred_at=2024-01-15T10:30:00.000Z\nactor=alice\n" +
		"event_type=VaultCreated\npayload={\"name\":\"Acme\",\"vault_id\":\"V1\"}\nprev_hash=" + GenesisHash + "\n"
	if got := e.CanonicalString(); got != want {
		t.Errorf("CanonicalString() =\n%q\nwant\n%q", got, want)
	}
	if e.ComputeHash() != hasher.String(want) {
		t.Error("ComputeHash() does not hash CanonicalString()")
	}
}

func TestAppend(t *testing.T) {
	t.Run("first event links to genesis", func(t *testing.T) {
		m := &memLedger{}
		e, err := Append(context.Background(), m, draft(1))
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if e.PrevHash != GenesisHash {
			t.Errorf("PrevHash = %s, want genesis", e.PrevHash)
		}
		if e.Seq != 1 {
			t.Errorf("Seq = %d, want 1", e.Seq)
		}
		if e.OccurredAt != "2024-01-15T10:30:00.001Z" {
			t.Errorf("OccurredAt = %s", e.OccurredAt)
		}
		if e.PayloadJSON != `{"n":1}` {
			t.Errorf("PayloadJSON = %s", e.PayloadJSON)
		}
	})

	t.Run("later events link to the previous hash", func(t *testing.T) {
		m := &memLedger{}
		appendN(t, m, 3)
		for i := 1; i < len(m.events); i++ {
			if m.events[i].PrevHash != m.events[i-1].Hash {
				t.Errorf("event %d PrevHash does not match event %d Hash", i+1, i)
			}
		}
	})

	t.Run("genesis sentinel is digest shaped", func(t *testing.T) {
		if !hasher.IsDigest(GenesisHash) {
			t.Error("GenesisHash is not 64 lowercase hex characters")
		}
	})

	t.Run("converts occurred_at to UTC", func(t *testing.T) {
		m := &memLedger{}
		d := draft(1)
		d.OccurredAt = time.Date(2024, 1, 15, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600))
		e, err := Append(context.Background(), m, d)
		if err != nil {
			t.Fatal(err)
		}
		if e.OccurredAt != "2024-01-15T10:30:00.000Z" {
			t.Errorf("OccurredAt = %s", e.OccurredAt)
		}
	})

	t.Run("rejects invalid drafts", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Draft)
		}{
			{name: "empty actor", mutate: func(d *Draft) { d.Actor = "  " }},
			{name: "empty type", mutate: func(d *Draft) { d.EventType = "" }},
			{name: "non-object payload", mutate: func(d *Draft) { d.Payload = canonical.Int(1) }},
			{name: "missing vault", mutate: func(d *Draft) { d.VaultID = "" }},
			{name: "missing time", mutate: func(d *Draft) { d.OccurredAt = time.Time{} }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m := &memLedger{}
				d := draft(1)
				tt.mutate(&d)
				_, err := Append(context.Background(), m, d)
				if !errors.Is(err, vaulterr.ErrValidation) {
					t.Errorf("Append() error = %v, want VALIDATION_ERROR", err)
				}
				if len(m.events) != 0 {
					t.Error("invalid draft was inserted")
				}
			})
		}
	})

	t.Run("propagates tip read failure", func(t *testing.T) {
		m := &memLedger{failTip: vaulterr.New(vaulterr.Database, "locked")}
		_, err := Append(context.Background(), m, draft(1))
		if !errors.Is(err, vaulterr.ErrDatabase) {
			t.Errorf("Append() error = %v, want DB_ERROR", err)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("empty ledger is valid", func(t *testing.T) {
		n, err := Validate(context.Background(), &memLedger{})
		if err != nil || n != 0 {
			t.Errorf("Validate() = %d, %v; want 0, nil", n, err)
		}
	})

	t.Run("untouched chain verifies across pages", func(t *testing.T) {
		m := &memLedger{}
		appendN(t, m, pageSize+7)
		n, err := Validate(context.Background(), m)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if n != pageSize+7 {
			t.Errorf("Validate() verified %d events, want %d", n, pageSize+7)
		}
	})

	t.Run("overwritten payload of event 2 fails at seq 2", func(t *testing.T) {
		m := &memLedger{}
		appendN(t, m, 3)
		m.events[1].PayloadJSON = `{"n":99}`

		_, err := Validate(context.Background(), m)
		assertTamperAt(t, err, 2)
	})
}

func TestValidate_anyAlteredFieldFailsAtItsSeq(t *testing.T) {
	fields := map[string]func(*Event){
		"event_id":    func(e *Event) { e.EventID += "X" },
		"vault_id":    func(e *Event) { e.VaultID = "other" },
		"occurred_at": func(e *Event) { e.OccurredAt = "2030-01-01T00:00:00.000Z" },
		"actor":       func(e *Event) { e.Actor = "mallory" },
		"event_type":  func(e *Event) { e.EventType = "EvidenceDeleted" },
		"payload":     func(e *Event) { e.PayloadJSON = `{}` },
		"prev_hash":   func(e *Event) { e.PrevHash = strings.Repeat("f", 64) },
		"hash":        func(e *Event) { e.Hash = strings.Repeat("e", 64) },
	}

	for name, mutate := range fields {
		for seq := 1; seq <= 4; seq++ {
			t.Run(fmt.Sprintf("%s@%d", name, seq), func(t *testing.T) {
				m := &memLedger{}
				appendN(t, m, 4)
				mutate(&m.events[seq-1])

				_, err := Validate(context.Background(), m)
				assertTamperAt(t, err, int64(seq))
			})
		}
	}
}

func TestValidateEvents_outOfOrder(t *testing.T) {
	m := &memLedger{}
	appendN(t, m, 2)
	events := []Event{m.events[0], m.events[0]}
	err := ValidateEvents(events)
	if vaulterr.KindOf(err) != vaulterr.CorruptVault {
		t.Errorf("ValidateEvents() error = %v, want CORRUPT_VAULT", err)
	}
}

func TestEvent_Payload(t *testing.T) {
	e := Event{Seq: 4, PayloadJSON: `{"a":1`}
	if _, err := e.Payload(); !errors.Is(err, vaulterr.ErrCorruptVault) {
		t.Errorf("Payload() error = %v, want CORRUPT_VAULT", err)
	}
}

func assertTamperAt(t *testing.T, err error, seq int64) {
	t.Helper()
	if !errors.Is(err, vaulterr.ErrHashMismatch) {
		t.Fatalf("error = %v, want HASH_MISMATCH", err)
	}
	var te *TamperError
	if !errors.As(err, &te) {
		t.Fatalf("error = %T, want *TamperError", err)
	}
	if te.Seq != seq {
		t.Errorf("TamperError.Seq = %d, want %d", te.Seq, seq)
	}
}
