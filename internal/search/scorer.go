// Package search ranks orders against a free-text admin query.
//
// Scores are a hand-tuned tier table: order id (10.0-9.9), order date
// (9.0-8.6), customer name (8.0-4.5). Only the relative order between tiers
// matters to callers, so the literal values must stay as they are.
package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/textmatch"
)

const (
	scoreIDExact  = 10.0
	scoreIDPrefix = 9.9

	scoreDateExact     = 9.0
	scoreDateMonth     = 9.0
	scoreDateMonthSep  = 8.9
	scoreDateMonthDay  = 8.8
	scoreDateMonthDay2 = 8.7
	scoreDatePrefix    = 8.6

	scoreNameFull          = 8.0
	scoreNamePart          = 7.5
	scoreNameFullPrefix    = 7.0
	scoreNameFirstPrefix   = 6.8
	scoreNameLastPrefix    = 6.5
	scoreNameFullContains  = 6.0
	scoreNameFirstContains = 5.8
	scoreNameLastContains  = 5.5
	scoreNameTransposed    = 5.2
	scoreFuzzyStrong       = 5.0
	scoreSingleFirst       = 5.0
	scoreSingleLast        = 4.8

	fuzzyScale      = 4.5
	fuzzyCap        = 4.8
	fuzzyStrongBest = 0.8
)

// orderIDPattern matches queries shaped like (part of) a 24-hex ObjectID.
var orderIDPattern = regexp.MustCompile(`^[a-f0-9]{1,24}$`)

// Scorer computes relevance scores for orders. The zero value renders order
// dates in UTC.
type Scorer struct {
	// Location is the time zone used to render order dates as M/D/YYYY.
	Location *time.Location
}

// NewScorer returns a Scorer rendering dates in loc (nil means UTC).
func NewScorer(loc *time.Location) *Scorer {
	return &Scorer{Location: loc}
}

func (s *Scorer) location() *time.Location {
	if s == nil || s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Score returns the relevance of o for query, 0 meaning no match.
func (s *Scorer) Score(o orders.Order, query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}

	id := strings.ToLower(o.OrderID)
	if id != "" {
		if id == q {
			return scoreIDExact
		}
		if strings.HasPrefix(id, q) {
			return scoreIDPrefix
		}
	}

	if score := s.dateScore(o.OrderDate, q); score > 0 {
		return score
	}

	// An id-shaped query that matched neither an id nor a date never falls
	// through to name matching.
	if orderIDPattern.MatchString(q) {
		return 0
	}

	return nameScore(o.Customer, q)
}

func (s *Scorer) dateScore(t time.Time, q string) float64 {
	if t.IsZero() {
		return 0
	}
	t = t.In(s.location())
	month := strconv.Itoa(int(t.Month()))
	day := strconv.Itoa(t.Day())
	formatted := month + "/" + day + "/" + strconv.Itoa(t.Year())

	switch {
	case q == formatted:
		return scoreDateExact
	case q == month:
		return scoreDateMonth
	case q == month+"/":
		return scoreDateMonthSep
	case q == month+"/"+day:
		return scoreDateMonthDay
	case q == month+"/"+day+"/":
		return scoreDateMonthDay2
	case strings.HasPrefix(formatted, q):
		return scoreDatePrefix
	}
	return 0
}

type nameParts struct {
	first, last, full string
}

func splitName(c *orders.CustomerSnapshot) nameParts {
	if c == nil {
		return nameParts{}
	}
	first := strings.ToLower(strings.TrimSpace(c.FirstName))
	last := strings.ToLower(strings.TrimSpace(c.LastName))
	return nameParts{
		first: first,
		last:  last,
		full:  strings.TrimSpace(first + " " + last),
	}
}

func hasPrefix(s, q string) bool  { return s != "" && strings.HasPrefix(s, q) }
func contains(s, q string) bool   { return s != "" && strings.Contains(s, q) }
func equalsPart(s, q string) bool { return s != "" && s == q }

func nameScore(c *orders.CustomerSnapshot, q string) float64 {
	n := splitName(c)
	if n.full == "" {
		return 0
	}

	if len([]rune(q)) == 1 {
		switch {
		case hasPrefix(n.first, q):
			return scoreSingleFirst
		case hasPrefix(n.last, q):
			return scoreSingleLast
		}
		return 0
	}

	switch {
	case n.full == q:
		return scoreNameFull
	case equalsPart(n.first, q) || equalsPart(n.last, q):
		return scoreNamePart
	case strings.HasPrefix(n.full, q):
		return scoreNameFullPrefix
	case hasPrefix(n.first, q):
		return scoreNameFirstPrefix
	case hasPrefix(n.last, q):
		return scoreNameLastPrefix
	case strings.Contains(n.full, q):
		return scoreNameFullContains
	case contains(n.first, q):
		return scoreNameFirstContains
	case contains(n.last, q):
		return scoreNameLastContains
	}

	for _, variant := range transpositions(q) {
		if contains(n.first, variant) || contains(n.last, variant) || contains(n.full, variant) {
			return scoreNameTransposed
		}
	}

	return fuzzyNameScore(n.full, q)
}

// transpositions returns q with each pair of adjacent runes swapped, skipping
// swaps that leave q unchanged.
func transpositions(q string) []string {
	r := []rune(q)
	var out []string
	for i := 0; i+1 < len(r); i++ {
		if r[i] == r[i+1] {
			continue
		}
		v := make([]rune, len(r))
		copy(v, r)
		v[i], v[i+1] = v[i+1], v[i]
		out = append(out, string(v))
	}
	return out
}

func fuzzyNameScore(full, q string) float64 {
	queryTokens := textmatch.Tokenize(q)
	nameTokens := textmatch.Tokenize(full)
	if len(queryTokens) == 0 || len(nameTokens) == 0 {
		return 0
	}

	var total, best float64
	for _, qt := range queryTokens {
		var tokenBest float64
		for _, nt := range nameTokens {
			tokenBest = max(tokenBest, textmatch.Similarity(qt, nt))
		}
		total += tokenBest
		best = max(best, tokenBest)
	}
	if best > fuzzyStrongBest {
		return scoreFuzzyStrong
	}
	return min(total/float64(len(queryTokens))*fuzzyScale, fuzzyCap)
}
