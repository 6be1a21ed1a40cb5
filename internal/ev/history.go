package ev

import (
	"fmt"

	"ev-go/internal/ledger"
)

// DefaultEventPage is the page size ListEvents callers use when none is given.
const DefaultEventPage = 100

// ListEvents returns up to limit events with seq greater than afterSeq, in
// chain order.
func (s *Service) ListEvents(afterSeq int64, limit int) ([]ledger.Event, error) {
	events, err := s.database.ListEvents(afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	s.logger.Debug("events listed", "after_seq", afterSeq, "count", len(events))
	return events, nil
}

// ValidateChain replays the ledger from genesis and returns the number of
// events checked.
func (s *Service) ValidateChain() (int64, error) {
	n, err := s.database.ValidateChain()
	if err != nil {
		s.logger.Warn("ledger validation failed", "error", err)
		return 0, err
	}
	s.logger.Info("ledger validated", "events", n)
	return n, nil
}
