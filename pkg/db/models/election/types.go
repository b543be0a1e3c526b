package election

import "time"

const (
	BallotsTableName = "invote_ballots"
	SeatsTableName   = "invote_seats"
)

// SpoiledLabel is shown in place of any invalid ballot value.
const SpoiledLabel = "ROSAK"

// Ballot is one recorded choice from a counting station. Value is nil when
// the ballot was left blank.
type Ballot struct {
	ID               *string   `json:"id,omitempty"`
	Value            *string   `json:"value,omitempty"`
	TimestampBox     time.Time `json:"timestamp_box"`
	TimestampBallot  time.Time `json:"timestamp_ballot"`
	SeriesIdentifier string    `json:"series_identifier"`
}

// TallyRow aggregates ballots sharing one value.
type TallyRow struct {
	Name  *string `json:"name"`
	Votes int64   `json:"votes"`
}

// Seat is the party currently called for one contested position. A nil
// Party means the seat has not been called.
type Seat struct {
	Index            int     `json:"index"`
	Party            *string `json:"party"`
	SeriesIdentifier string  `json:"-"`
}

// StrPtr is a small helper for building optional values.
func StrPtr(s string) *string { return &s }

// SameParty compares two optional party values.
func SameParty(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
