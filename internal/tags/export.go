package tags

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallListHeader is the column order of the exported call list.
var CallListHeader = []string{
	"voter_id", "first_name", "last_name", "address", "city", "zip_code",
	"precinct", "phone", "email", "note",
}

// WriteCallList writes the user's tagged voters who have not voted yet as CSV.
// Rows are read in one read-only transaction so the file is a consistent snapshot.
func (s *Service) WriteCallList(ctx context.Context, userID uuid.UUID, w io.Writer) (int, error) {
	var items []TaggedVoter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		items, err = s.taggedVoters(tx, userID, true)
		return err
	}, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CallListHeader); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	for _, item := range items {
		if err := cw.Write([]string{
			item.VoterID, item.FirstName, item.LastName, item.Address, item.City,
			item.ZipCode, item.Precinct, item.Phone, item.Email, item.Note,
		}); err != nil {
			return 0, fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}
	return len(items), nil
}
