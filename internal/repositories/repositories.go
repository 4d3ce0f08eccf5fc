package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/ytq/internal/shared"
)

// sequenced maps a ledger table to its single-row counter table.
var sequenced = map[string]string{
	"uploads": "uploads_sequence",
}

// NextSequence increments the counter for table and returns the new value.
//
// Sequence numbers give the ledger a stable insertion order; the history command sorts on them.
func NextSequence(db *sql.DB, table string) (int, error) {
	counter, ok := sequenced[table]
	if !ok {
		return 0, fmt.Errorf("%w: no sequence for table %q", shared.ErrInvalidInput, table)
	}

	var sequence int
	row := db.QueryRow(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1 RETURNING value", counter))
	if err := row.Scan(&sequence); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("sequence %s is not seeded", counter)
		}
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
