package election

import (
	"context"
	"fmt"

	electionmodels "github.com/invote/invote/pkg/db/models/election"
	"github.com/invote/invote/pkg/db/postgres"
	"github.com/jackc/pgx/v5"
)

func (db *DB) initSeats(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + electionmodels.SeatsTableName + ` (
			"index" INTEGER NOT NULL CHECK ("index" >= 0),
			party TEXT,
			series_identifier TEXT NOT NULL,
			UNIQUE ("index", series_identifier)
		)
	`
	return db.Exec(ctx, query)
}

// FetchSeats returns the seats of a series ordered by index.
func (db *DB) FetchSeats(ctx context.Context, series string) ([]electionmodels.Seat, error) {
	rows, err := db.Query(ctx, `
		SELECT "index", party FROM `+electionmodels.SeatsTableName+`
		WHERE series_identifier = $1
		ORDER BY "index" ASC
	`, series)
	if err != nil {
		return nil, fmt.Errorf("query seats: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (electionmodels.Seat, error) {
		s := electionmodels.Seat{SeriesIdentifier: series}
		err := row.Scan(&s.Index, &s.Party)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan seats: %w", err)
	}
	return out, nil
}

// FetchSeat returns nil, nil when the seat does not exist.
func (db *DB) FetchSeat(ctx context.Context, series string, index int) (*electionmodels.Seat, error) {
	s := electionmodels.Seat{SeriesIdentifier: series}
	err := db.QueryRow(ctx, `
		SELECT "index", party FROM `+electionmodels.SeatsTableName+`
		WHERE series_identifier = $1 AND "index" = $2
	`, series, index).Scan(&s.Index, &s.Party)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query seat %d: %w", index, err)
	}
	return &s, nil
}

// UpsertSeat writes the seat keyed by (index, series_identifier).
func (db *DB) UpsertSeat(ctx context.Context, seat electionmodels.Seat) error {
	query := `
		INSERT INTO ` + electionmodels.SeatsTableName + ` ("index", party, series_identifier)
		VALUES ($1, $2, $3)
		ON CONFLICT ("index", series_identifier) DO UPDATE SET party = EXCLUDED.party
	`
	if err := db.Exec(ctx, query, seat.Index, seat.Party, seat.SeriesIdentifier); err != nil {
		return fmt.Errorf("upsert seat %d: %w", seat.Index, err)
	}
	return nil
}
