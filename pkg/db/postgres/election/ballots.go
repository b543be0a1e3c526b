package election

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/invote/invote/pkg/db"
	electionmodels "github.com/invote/invote/pkg/db/models/election"
	"github.com/jackc/pgx/v5"
)

func (db *DB) initBallots(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + electionmodels.BallotsTableName + ` (
			id TEXT,
			value TEXT,
			timestamp_box TIMESTAMPTZ,
			timestamp_ballot TIMESTAMPTZ,
			series_identifier TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_invote_ballots_series_box
			ON ` + electionmodels.BallotsTableName + ` (series_identifier, timestamp_box);
	`
	return db.Exec(ctx, query)
}

// FetchBallotTallies groups ballots by value, most votes first.
func (db *DB) FetchBallotTallies(ctx context.Context, filter db.TallyFilter) ([]electionmodels.TallyRow, error) {
	var (
		where []string
		args  []any
	)
	if filter.Series != "" {
		args = append(args, filter.Series)
		where = append(where, fmt.Sprintf("series_identifier = $%d", len(args)))
	}
	if filter.Box != nil {
		args = append(args, *filter.Box)
		where = append(where, fmt.Sprintf("timestamp_box = $%d", len(args)))
	}

	query := `SELECT value AS name, COUNT(*) AS votes FROM ` + electionmodels.BallotsTableName
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` GROUP BY value ORDER BY votes DESC`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ballot tallies: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (electionmodels.TallyRow, error) {
		var r electionmodels.TallyRow
		err := row.Scan(&r.Name, &r.Votes)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ballot tallies: %w", err)
	}
	return out, nil
}

// FetchDistinctBoxTimestamps lists box close times, newest first.
func (db *DB) FetchDistinctBoxTimestamps(ctx context.Context, series string) ([]time.Time, error) {
	query := `SELECT DISTINCT timestamp_box FROM ` + electionmodels.BallotsTableName + ` WHERE timestamp_box IS NOT NULL`
	var args []any
	if series != "" {
		query += ` AND series_identifier = $1`
		args = append(args, series)
	}
	query += ` ORDER BY timestamp_box DESC`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query box timestamps: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("scan box timestamps: %w", err)
	}
	return out, nil
}

// FetchDistinctSeriesIdentifiers lists every series with ballots, descending.
func (db *DB) FetchDistinctSeriesIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT DISTINCT series_identifier FROM `+electionmodels.BallotsTableName+`
		WHERE series_identifier IS NOT NULL
		ORDER BY series_identifier DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query series identifiers: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan series identifiers: %w", err)
	}
	return out, nil
}

// InsertBallot stores one ballot.
func (db *DB) InsertBallot(ctx context.Context, b electionmodels.Ballot) error {
	query := `INSERT INTO ` + electionmodels.BallotsTableName + `
		(id, value, timestamp_box, timestamp_ballot, series_identifier)
		VALUES ($1, $2, $3, $4, $5)`
	if err := db.Exec(ctx, query, b.ID, b.Value, b.TimestampBox, b.TimestampBallot, b.SeriesIdentifier); err != nil {
		return fmt.Errorf("insert ballot: %w", err)
	}
	return nil
}
