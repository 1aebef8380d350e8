package voters

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hugh/turnout-tracker/internal/database/models"
	"gorm.io/gorm"
)

const (
	importBatchSize = 500
	maxReportedRows = 100
)

// RowError describes a skipped line. Line is 1-based and counts the header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Imported int        `json:"imported"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
	// Warnings lists imported rows that needed attention, such as a column
	// count that differs from the header.
	Warnings []RowError `json:"warnings"`
}

func (r *ImportResult) skip(line int, reason string) {
	r.Skipped++
	if len(r.Errors) < maxReportedRows {
		r.Errors = append(r.Errors, RowError{Line: line, Reason: reason})
	}
}

func (r *ImportResult) warn(line int, reason string) {
	if len(r.Warnings) < maxReportedRows {
		r.Warnings = append(r.Warnings, RowError{Line: line, Reason: reason})
	}
}

type VotedResult struct {
	Updated      int      `json:"updated"`
	AlreadyVoted int      `json:"already_voted"`
	NotFound     int      `json:"not_found"`
	NotFoundIDs  []string `json:"not_found_ids"`
}

type Importer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewImporter(db *gorm.DB, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{db: db, logger: logger, now: time.Now}
}

// importRow is one parsed data line. fields holds only non-empty values of
// columns present in the file, keyed by database column.
type importRow struct {
	voterID string
	fields  map[string]interface{}
}

// ImportVoters upserts voters by voter_id in a single transaction. Rows that
// cannot be used are skipped and reported, never fatal.
func (im *Importer) ImportVoters(ctx context.Context, r io.Reader) (*ImportResult, error) {
	result := &ImportResult{Errors: []RowError{}, Warnings: []RowError{}}

	cr := newCSVReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	cols := mapHeader(header)
	if !cols.has(colVoterID) {
		return nil, ErrMissingVoterIDColumn
	}

	var rows []importRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.skip(perr.StartLine, perr.Err.Error())
				continue
			}
			return nil, fmt.Errorf("reading upload: %w", err)
		}
		if isBlank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		row, reason := parseVoterRow(cols, record)
		if reason != "" {
			result.skip(line, reason)
			continue
		}
		if len(record) != len(header) {
			result.warn(line, fmt.Sprintf("expected %d columns, got %d", len(header), len(record)))
		}
		rows = append(rows, row)
	}

	now := im.now().Unix()
	err = im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(rows); start += importBatchSize {
			end := min(start+importBatchSize, len(rows))
			if err := upsertBatch(tx, rows[start:end], now, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importing voters: %w", err)
	}

	im.logger.Info("voter import finished",
		"imported", result.Imported,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)
	return result, nil
}

func parseVoterRow(cols columnMap, record []string) (importRow, string) {
	voterID := cols.get(record, colVoterID)
	if voterID == "" {
		return importRow{}, "missing voter_id"
	}

	fields := make(map[string]interface{})
	set := func(col string) {
		if v := cols.get(record, col); v != "" {
			fields[col] = v
		}
	}
	for _, col := range []string{
		colFirstName, colLastName, colAddress, colCity, colState, colZipCode,
		colCounty, colPrecinct, colRegisteredParty, colPhone, colEmail,
	} {
		set(col)
	}

	if cols.has(colFullName) {
		first, last := SplitFullName(cols.get(record, colFullName))
		if _, ok := fields[colFirstName]; !ok && first != "" {
			fields[colFirstName] = first
		}
		if _, ok := fields[colLastName]; !ok && last != "" {
			fields[colLastName] = last
		}
	}

	// Imports may mark a voter as voted but never unmark one.
	if cols.has(colHasVoted) && parseVoted(cols.get(record, colHasVoted)) {
		fields[colHasVoted] = true
	}

	return importRow{voterID: voterID, fields: fields}, ""
}

func upsertBatch(tx *gorm.DB, batch []importRow, now int64, result *ImportResult) error {
	ids := make([]string, 0, len(batch))
	for _, row := range batch {
		ids = append(ids, row.voterID)
	}

	var existing []string
	if err := tx.Model(&models.Voter{}).Where("voter_id IN ?", ids).Pluck("voter_id", &existing).Error; err != nil {
		return fmt.Errorf("loading existing voters: %w", err)
	}
	inDB := make(map[string]bool, len(existing))
	for _, id := range existing {
		inDB[id] = true
	}

	pending := make(map[string]*models.Voter)
	var order []string

	for _, row := range batch {
		if inDB[row.voterID] {
			if len(row.fields) > 0 {
				updates := withVotedAt(row.fields, now)
				// has_voted=false rows are never written, so a voted voter stays voted.
				if err := tx.Model(&models.Voter{}).Where("voter_id = ?", row.voterID).Updates(updates).Error; err != nil {
					return fmt.Errorf("updating voter %s: %w", row.voterID, err)
				}
			}
			result.Updated++
			continue
		}

		if v, ok := pending[row.voterID]; ok {
			applyFields(v, row.fields, now)
			result.Updated++
			continue
		}

		v := &models.Voter{VoterID: row.voterID}
		applyFields(v, row.fields, now)
		pending[row.voterID] = v
		order = append(order, row.voterID)
		result.Imported++
	}

	if len(order) == 0 {
		return nil
	}
	fresh := make([]*models.Voter, 0, len(order))
	for _, id := range order {
		fresh = append(fresh, pending[id])
	}
	if err := tx.CreateInBatches(fresh, importBatchSize).Error; err != nil {
		return fmt.Errorf("inserting voters: %w", err)
	}
	return nil
}

func withVotedAt(fields map[string]interface{}, now int64) map[string]interface{} {
	if voted, _ := fields[colHasVoted].(bool); !voted {
		return fields
	}
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["voted_at"] = gorm.Expr("CASE WHEN voted_at IS NULL OR voted_at = 0 THEN ? ELSE voted_at END", now)
	return out
}

func applyFields(v *models.Voter, fields map[string]interface{}, now int64) {
	str := func(col string, dst *string) {
		if s, ok := fields[col].(string); ok {
			*dst = s
		}
	}
	str(colFirstName, &v.FirstName)
	str(colLastName, &v.LastName)
	str(colAddress, &v.Address)
	str(colCity, &v.City)
	str(colState, &v.State)
	str(colZipCode, &v.ZipCode)
	str(colCounty, &v.County)
	str(colPrecinct, &v.Precinct)
	str(colRegisteredParty, &v.RegisteredParty)
	str(colPhone, &v.Phone)
	str(colEmail, &v.Email)
	if voted, _ := fields[colHasVoted].(bool); voted && !v.HasVoted {
		v.HasVoted = true
		v.VotedAt = now
	}
}

// ImportVoted marks listed voters as having voted. The file is either a CSV
// with a voter_id column or a headerless single-column list of ids.
func (im *Importer) ImportVoted(ctx context.Context, r io.Reader) (*VotedResult, error) {
	ids, err := readVotedIDs(r)
	if err != nil {
		return nil, err
	}

	result := &VotedResult{NotFoundIDs: []string{}}
	now := im.now().Unix()

	err = im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(ids); start += importBatchSize {
			end := min(start+importBatchSize, len(ids))
			if err := markVotedBatch(tx, ids[start:end], now, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importing voted list: %w", err)
	}

	im.logger.Info("voted import finished",
		"updated", result.Updated,
		"already_voted", result.AlreadyVoted,
		"not_found", result.NotFound,
	)
	return result, nil
}

func markVotedBatch(tx *gorm.DB, batch []string, now int64, result *VotedResult) error {
	var found []models.Voter
	if err := tx.Select("id", "voter_id", "has_voted").
		Where("voter_id IN ?", batch).
		Find(&found).Error; err != nil {
		return fmt.Errorf("loading voters: %w", err)
	}

	known := make(map[string]bool, len(found))
	var toMark []string
	for _, v := range found {
		known[v.VoterID] = true
		if v.HasVoted {
			result.AlreadyVoted++
			continue
		}
		toMark = append(toMark, v.VoterID)
	}

	if len(toMark) > 0 {
		res := tx.Model(&models.Voter{}).
			Where("voter_id IN ? AND has_voted = ?", toMark, false).
			Updates(map[string]interface{}{"has_voted": true, "voted_at": now})
		if res.Error != nil {
			return fmt.Errorf("marking voters: %w", res.Error)
		}
		result.Updated += int(res.RowsAffected)
	}

	for _, id := range batch {
		if known[id] {
			continue
		}
		result.NotFound++
		if len(result.NotFoundIDs) < maxReportedRows {
			result.NotFoundIDs = append(result.NotFoundIDs, id)
		}
	}
	return nil
}

func readVotedIDs(r io.Reader) ([]string, error) {
	cr := newCSVReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	// Drop blank lines up front so header detection sees real content.
	nonBlank := records[:0]
	for _, rec := range records {
		if !isBlank(rec) {
			nonBlank = append(nonBlank, rec)
		}
	}
	records = nonBlank
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	// Without a recognised header only a single-column list is accepted.
	col, ok := mapHeader(records[0])[colVoterID]
	data := records
	switch {
	case ok:
		data = records[1:]
	case len(records[0]) != 1:
		return nil, ErrMissingVoterIDColumn
	}

	seen := make(map[string]struct{}, len(data))
	ids := make([]string, 0, len(data))
	for _, rec := range data {
		if col >= len(rec) {
			continue
		}
		id := strings.TrimSpace(strings.TrimPrefix(rec[col], "\ufeff"))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
