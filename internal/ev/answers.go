package ev

import (
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"ev-go/internal/canonical"
	"ev-go/internal/database/sqlc"
	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// AnswerSourceManual is the source of entries typed in by a user.
const AnswerSourceManual = "manual"

// Answer is an answer bank entry with its list columns decoded.
type Answer struct {
	EntryID           string
	VaultID           string
	QuestionCanonical string
	AnswerShort       string
	AnswerLong        string
	Notes             string
	EvidenceLinks     []string
	Owner             string
	LastReviewedAt    string
	Tags              []string
	Source            string
	ContentHash       string
	CreatedAt         string
	UpdatedAt         string
}

// AnswerInput holds the fields of a new entry. Notes and LastReviewedAt may
// be empty.
type AnswerInput struct {
	QuestionCanonical string
	AnswerShort       string
	AnswerLong        string
	Notes             string
	EvidenceLinks     []string
	Owner             string
	LastReviewedAt    string
	Tags              []string
	Source            string
}

// AnswerPatch changes the non-nil fields of an entry. Setting Notes or
// LastReviewedAt to an empty string clears them.
type AnswerPatch struct {
	QuestionCanonical *string
	AnswerShort       *string
	AnswerLong        *string
	Notes             *string
	EvidenceLinks     *[]string
	Owner             *string
	LastReviewedAt    *string
	Tags              *[]string
	Source            *string
}

// CreateAnswer normalizes input and stores a new entry.
func (s *Service) CreateAnswer(input AnswerInput, actor string) (*Answer, error) {
	if err := s.beginMutation(); err != nil {
		return nil, err
	}

	a := &Answer{
		Notes:          normalizeText(input.Notes),
		EvidenceLinks:  normalizeList(input.EvidenceLinks),
		LastReviewedAt: strings.TrimSpace(input.LastReviewedAt),
		Tags:           normalizeList(input.Tags),
	}
	var err error
	if a.QuestionCanonical, err = requiredText("question_canonical", input.QuestionCanonical); err != nil {
		return nil, err
	}
	if a.AnswerShort, err = requiredText("answer_short", input.AnswerShort); err != nil {
		return nil, err
	}
	if a.AnswerLong, err = requiredText("answer_long", input.AnswerLong); err != nil {
		return nil, err
	}
	if a.Owner, err = requiredText("owner", input.Owner); err != nil {
		return nil, err
	}
	if a.Source, err = requiredText("source", input.Source); err != nil {
		return nil, err
	}

	if a.EntryID, err = s.idgen.New(); err != nil {
		return nil, err
	}
	a.VaultID = s.vault.VaultID
	a.ContentHash = a.computeContentHash()
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt

	draft, err := s.draft(actor, EventAnswerBankEntryCreated, canonical.Object(
		canonical.F("content_hash", canonical.String(a.ContentHash)),
		canonical.F("entry_id", canonical.String(a.EntryID)),
	))
	if err != nil {
		return nil, err
	}
	if _, err := s.database.CreateAnswer(a.row(), draft); err != nil {
		return nil, fmt.Errorf("creating answer: %w", err)
	}

	s.logger.Info("answer created", "entry_id", a.EntryID, "content_hash", a.ContentHash)
	return a, nil
}

// GetAnswer returns an entry by id.
func (s *Service) GetAnswer(entryID string) (*Answer, error) {
	row, err := s.database.FindAnswer(entryID)
	if err != nil {
		return nil, fmt.Errorf("finding answer: %w", err)
	}
	if row == nil {
		return nil, vaulterr.New(vaulterr.NotFound, "answer %s not found", entryID)
	}
	return answerFromRow(row)
}

// UpdateAnswer applies patch and records the names of the fields that
// actually changed. A patch that changes nothing still records an event.
func (s *Service) UpdateAnswer(entryID string, patch AnswerPatch, actor string) (*Answer, error) {
	if err := s.beginMutation(); err != nil {
		return nil, err
	}
	before, err := s.GetAnswer(entryID)
	if err != nil {
		return nil, err
	}

	after := *before
	set := func(field string, p *string, dst *string) error {
		if p == nil {
			return nil
		}
		v, err := requiredText(field, *p)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	if err := set("question_canonical", patch.QuestionCanonical, &after.QuestionCanonical); err != nil {
		return nil, err
	}
	if err := set("answer_short", patch.AnswerShort, &after.AnswerShort); err != nil {
		return nil, err
	}
	if err := set("answer_long", patch.AnswerLong, &after.AnswerLong); err != nil {
		return nil, err
	}
	if err := set("owner", patch.Owner, &after.Owner); err != nil {
		return nil, err
	}
	if err := set("source", patch.Source, &after.Source); err != nil {
		return nil, err
	}
	if patch.Notes != nil {
		after.Notes = normalizeText(*patch.Notes)
	}
	if patch.LastReviewedAt != nil {
		after.LastReviewedAt = strings.TrimSpace(*patch.LastReviewedAt)
	}
	if patch.EvidenceLinks != nil {
		after.EvidenceLinks = normalizeList(*patch.EvidenceLinks)
	}
	if patch.Tags != nil {
		after.Tags = normalizeList(*patch.Tags)
	}
	after.ContentHash = after.computeContentHash()
	after.UpdatedAt = s.now()

	changed := changedFields(before, &after)
	draft, err := s.draft(actor, EventAnswerBankEntryUpdated, canonical.Object(
		canonical.F("changed_fields", canonical.Strings(changed)),
		canonical.F("content_hash", canonical.String(after.ContentHash)),
		canonical.F("entry_id", canonical.String(after.EntryID)),
	))
	if err != nil {
		return nil, err
	}
	if _, err := s.database.UpdateAnswer(after.row(), draft); err != nil {
		return nil, fmt.Errorf("updating answer: %w", err)
	}

	s.logger.Info("answer updated", "entry_id", entryID, "changed", changed)
	return &after, nil
}

// DeleteAnswer removes an entry. The ledger keeps its content hash.
func (s *Service) DeleteAnswer(entryID, actor string) error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	a, err := s.GetAnswer(entryID)
	if err != nil {
		return err
	}

	draft, err := s.draft(actor, EventAnswerBankEntryDeleted, canonical.Object(
		canonical.F("content_hash", canonical.String(a.ContentHash)),
		canonical.F("entry_id", canonical.String(a.EntryID)),
	))
	if err != nil {
		return err
	}
	if _, err := s.database.DeleteAnswer(entryID, draft); err != nil {
		return fmt.Errorf("deleting answer: %w", err)
	}

	s.logger.Info("answer deleted", "entry_id", entryID)
	return nil
}

// ListAnswers pages through entries ordered by question.
func (s *Service) ListAnswers(limit, offset int64) ([]*Answer, error) {
	if err := checkPage(limit, offset); err != nil {
		return nil, err
	}
	rows, err := s.database.ListAnswers(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing answers: %w", err)
	}
	return answersFromRows(rows)
}

// SearchAnswers finds entries whose question or answers contain query,
// case-insensitively for ASCII. An empty query lists everything.
func (s *Service) SearchAnswers(query string, limit, offset int64) ([]*Answer, error) {
	if err := checkPage(limit, offset); err != nil {
		return nil, err
	}
	q := normalizeText(query)
	if q == "" {
		return s.ListAnswers(limit, offset)
	}
	rows, err := s.database.SearchAnswers("%"+escapeLike(q)+"%", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("searching answers: %w", err)
	}
	s.logger.Debug("answers searched", "query", q, "matches", len(rows))
	return answersFromRows(rows)
}

// LinkEvidence adds a live evidence item to an entry's evidence links.
func (s *Service) LinkEvidence(entryID, evidenceID, actor string) (*Answer, error) {
	item, err := s.GetEvidence(strings.TrimSpace(evidenceID))
	if err != nil {
		return nil, err
	}
	if item.DeletedAt.Valid {
		return nil, vaulterr.New(vaulterr.NotFound, "evidence %s was deleted", evidenceID)
	}
	a, err := s.GetAnswer(entryID)
	if err != nil {
		return nil, err
	}

	links := append(slices.Clone(a.EvidenceLinks), item.EvidenceID)
	return s.UpdateAnswer(entryID, AnswerPatch{EvidenceLinks: &links}, actor)
}

func checkPage(limit, offset int64) error {
	if limit <= 0 {
		return vaulterr.New(vaulterr.Validation, "limit must be positive")
	}
	if offset < 0 {
		return vaulterr.New(vaulterr.Validation, "offset must not be negative")
	}
	return nil
}

// computeContentHash digests the fields that make up the answer itself.
// Ownership, review date and links are bookkeeping and do not count.
func (a *Answer) computeContentHash() string {
	return hasher.String(strings.Join([]string{
		a.QuestionCanonical,
		a.AnswerShort,
		a.AnswerLong,
		a.Notes,
		strings.Join(a.Tags, ","),
		a.Source,
	}, "\n"))
}

func (a *Answer) row() *sqlc.AnswerBankEntry {
	return &sqlc.AnswerBankEntry{
		EntryID:           a.EntryID,
		VaultID:           a.VaultID,
		QuestionCanonical: a.QuestionCanonical,
		AnswerShort:       a.AnswerShort,
		AnswerLong:        a.AnswerLong,
		Notes:             nullable(a.Notes),
		EvidenceLinks:     canonical.Strings(a.EvidenceLinks).Encode(),
		Owner:             a.Owner,
		LastReviewedAt:    nullable(a.LastReviewedAt),
		Tags:              canonical.Strings(a.Tags).Encode(),
		Source:            a.Source,
		ContentHash:       a.ContentHash,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func answerFromRow(r *sqlc.AnswerBankEntry) (*Answer, error) {
	links, err := decodeList(r.EvidenceLinks)
	if err != nil {
		return nil, fmt.Errorf("answer %s evidence_links: %w", r.EntryID, err)
	}
	tags, err := decodeList(r.Tags)
	if err != nil {
		return nil, fmt.Errorf("answer %s tags: %w", r.EntryID, err)
	}
	return &Answer{
		EntryID:           r.EntryID,
		VaultID:           r.VaultID,
		QuestionCanonical: r.QuestionCanonical,
		AnswerShort:       r.AnswerShort,
		AnswerLong:        r.AnswerLong,
		Notes:             r.Notes.String,
		EvidenceLinks:     links,
		Owner:             r.Owner,
		LastReviewedAt:    r.LastReviewedAt.String,
		Tags:              tags,
		Source:            r.Source,
		ContentHash:       r.ContentHash,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

func answersFromRows(rows []*sqlc.AnswerBankEntry) ([]*Answer, error) {
	out := make([]*Answer, 0, len(rows))
	for _, r := range rows {
		a, err := answerFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeList(text string) ([]string, error) {
	v, err := canonical.Decode(text)
	if err != nil {
		return nil, err
	}
	return v.StringSlice()
}

// changedFields lists, in name order, the columns that differ.
func changedFields(before, after *Answer) []string {
	var changed []string
	add := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}
	add("answer_long", before.AnswerLong != after.AnswerLong)
	add("answer_short", before.AnswerShort != after.AnswerShort)
	add("content_hash", before.ContentHash != after.ContentHash)
	add("evidence_links", !slices.Equal(before.EvidenceLinks, after.EvidenceLinks))
	add("last_reviewed_at", before.LastReviewedAt != after.LastReviewedAt)
	add("notes", before.Notes != after.Notes)
	add("owner", before.Owner != after.Owner)
	add("question_canonical", before.QuestionCanonical != after.QuestionCanonical)
	add("source", before.Source != after.Source)
	add("tags", !slices.Equal(before.Tags, after.Tags))
	return changed
}

// normalizeText trims s and converts CRLF and CR line endings to LF.
func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func requiredText(field, s string) (string, error) {
	out := normalizeText(s)
	if out == "" {
		return "", vaulterr.New(vaulterr.Validation, "%s is required", field)
	}
	return out, nil
}

// normalizeList trims items, drops empties, sorts and removes duplicates.
func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// escapeLike escapes LIKE wildcards for an ESCAPE '\' clause.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
