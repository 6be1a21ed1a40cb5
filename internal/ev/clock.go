package ev

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"ev-go/internal/vaulterr"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() (string, error)
}

// ULIDGenerator produces ULIDs: a 48-bit millisecond timestamp taken from
// clock followed by 80 bits from a cryptographic source.
type ULIDGenerator struct {
	clock   Clock
	entropy io.Reader
}

func NewULIDGenerator(clock Clock) *ULIDGenerator {
	return &ULIDGenerator{clock: clock, entropy: rand.Reader}
}

func (g *ULIDGenerator) New() (string, error) {
	id, err := ulid.New(ulid.Timestamp(g.clock.Now()), g.entropy)
	if err != nil {
		// Only ErrBigTime or a failing entropy source get here.
		return "", vaulterr.Wrap(vaulterr.Internal, err, "generating ulid")
	}
	return id.String(), nil
}
