// Package disclosure decides when tallies may show real names and applies
// the anonymizing transforms when they may not.
package disclosure

import (
	"sort"
	"strconv"
	"time"

	"github.com/invote/invote/pkg/db/models/election"
	"github.com/invote/invote/pkg/tally"
)

// DefaultRevealDelay is how long a box stays hidden after it closes.
const DefaultRevealDelay = 3 * time.Hour

// Config is fixed for the life of a Policy.
type Config struct {
	// SensitiveSeries is the one series eligible for gating.
	SensitiveSeries string
	// Anonymize enables gating at all.
	Anonymize bool
	// RevealDelay is measured from a box's timestamp.
	RevealDelay time.Duration
}

// Result is the response envelope for every tally endpoint.
type Result struct {
	Hidden bool                `json:"hidden"`
	Data   []election.TallyRow `json:"data"`
}

// Policy applies a Config.
type Policy struct {
	cfg Config
}

// New returns a Policy for cfg, defaulting RevealDelay when unset.
func New(cfg Config) *Policy {
	if cfg.RevealDelay <= 0 {
		cfg.RevealDelay = DefaultRevealDelay
	}
	return &Policy{cfg: cfg}
}

// Config returns a copy of the policy configuration.
func (p *Policy) Config() Config { return p.cfg }

// Hidden is used where the series filter is optional: an omitted series
// falls back to the sensitive one.
func (p *Policy) Hidden(series string) bool {
	return p.cfg.Anonymize && (series == "" || series == p.cfg.SensitiveSeries)
}

// HiddenFor is used where a series is always named.
func (p *Policy) HiddenFor(series string) bool {
	return p.cfg.Anonymize && series == p.cfg.SensitiveSeries
}

// RevealAt is the instant a box becomes visible.
func (p *Policy) RevealAt(box time.Time) time.Time {
	return box.Add(p.cfg.RevealDelay)
}

// Revealed reports whether box may be listed at now.
func (p *Policy) Revealed(box, now time.Time) bool {
	return !now.Before(p.RevealAt(box))
}

// GateBoxes drops boxes that are not revealed yet when gated is set. Order
// is preserved. The input slice is not modified.
func (p *Policy) GateBoxes(boxes []time.Time, now time.Time, gated bool) []time.Time {
	out := make([]time.Time, 0, len(boxes))
	for _, b := range boxes {
		if b.IsZero() {
			continue
		}
		if gated && !p.Revealed(b, now) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Disclose relabels rows for publication.
//
// When hidden, every row is named by its 1-based rank and the order is left
// alone. Otherwise spoiled values are collapsed to the spoiled label and
// moved behind all real names, keeping relative order on both sides.
// Spoiled rows are ranked like any other row in the hidden branch.
func Disclose(rows []election.TallyRow, hidden bool) Result {
	data := make([]election.TallyRow, len(rows))
	for i, row := range rows {
		name := row.Name
		switch {
		case hidden:
			name = election.StrPtr(Ordinal(i + 1))
		case tally.IsSpoiled(name):
			name = election.StrPtr(election.SpoiledLabel)
		default:
			name = election.StrPtr(*name)
		}
		data[i] = election.TallyRow{Name: name, Votes: row.Votes}
	}

	if !hidden {
		sort.SliceStable(data, func(a, b int) bool {
			return *data[a].Name != election.SpoiledLabel && *data[b].Name == election.SpoiledLabel
		})
	}

	return Result{Hidden: hidden, Data: data}
}

// Ordinal renders n with its English suffix: 1st, 2nd, 3rd, 4th, 11th, 21st.
func Ordinal(n int) string {
	return strconv.Itoa(n) + ordinalSuffix(n)
}

func ordinalSuffix(n int) string {
	if n < 0 {
		n = -n
	}
	switch {
	case n%10 == 1 && n%100 != 11:
		return "st"
	case n%10 == 2 && n%100 != 12:
		return "nd"
	case n%10 == 3 && n%100 != 13:
		return "rd"
	default:
		return "th"
	}
}
