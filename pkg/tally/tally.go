// Package tally turns ballots into ranked vote counts.
package tally

import (
	"sort"

	"github.com/invote/invote/pkg/db/models/election"
)

// IsSpoiled reports whether a ballot value counts as an invalid ballot:
// missing, empty or explicitly marked as spoiled.
func IsSpoiled(name *string) bool {
	return name == nil || *name == "" || *name == election.SpoiledLabel
}

// Aggregate groups ballots by value and ranks the groups by votes
// descending. Named groups with equal counts keep the order in which their
// value was first seen. Nil values form their own group, which ranks behind
// every named group with the same count.
func Aggregate(ballots []election.Ballot) []election.TallyRow {
	rows := make([]election.TallyRow, 0)
	index := make(map[string]int)
	var nulls int64

	for _, b := range ballots {
		if b.Value == nil {
			nulls++
			continue
		}
		i, ok := index[*b.Value]
		if !ok {
			i = len(rows)
			index[*b.Value] = i
			rows = append(rows, election.TallyRow{Name: election.StrPtr(*b.Value)})
		}
		rows[i].Votes++
	}
	if nulls > 0 {
		rows = append(rows, election.TallyRow{Votes: nulls})
	}

	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Votes > rows[b].Votes })
	return rows
}

// Total sums the votes of all rows.
func Total(rows []election.TallyRow) int64 {
	var n int64
	for _, r := range rows {
		n += r.Votes
	}
	return n
}
