package search

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/textmatch"
)

// Threshold is the minimum score (exclusive) an order needs to appear in
// search results.
const Threshold = 0.3

// Result is one ranked order.
type Result struct {
	Order   orders.Order
	Score   float64
	SortKey int
}

// SortKey grades how the customer name lines up with query by equality and
// prefix only, from 8 (full name equal) down to 0. It breaks ties inside one
// score tier.
func SortKey(o orders.Order, query string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	n := splitName(o.Customer)
	if q == "" || n.full == "" {
		return 0
	}
	switch {
	case n.full == q:
		return 8
	case equalsPart(n.first, q):
		return 7
	case equalsPart(n.last, q):
		return 6
	case strings.HasPrefix(n.full, q):
		return 5
	case hasPrefix(n.first, q):
		return 4
	case hasPrefix(n.last, q):
		return 3
	}
	for _, tok := range textmatch.Tokenize(n.full) {
		if strings.HasPrefix(tok, q) {
			return 2
		}
	}
	if strings.Contains(n.full, q) {
		return 1
	}
	return 0
}

// Rank scores every order against query, keeps those above Threshold and
// orders them by score tier, SortKey, raw score and then newest order date.
// A blank query keeps every order, newest first, with zero scores.
func (s *Scorer) Rank(list []orders.Order, query string) []Result {
	if strings.TrimSpace(query) == "" {
		out := make([]Result, len(list))
		for i, o := range list {
			out[i] = Result{Order: o}
		}
		slices.SortStableFunc(out, func(a, b Result) int {
			return b.Order.OrderDate.Compare(a.Order.OrderDate)
		})
		return out
	}

	out := make([]Result, 0, len(list))
	for _, o := range list {
		score := s.Score(o, query)
		if score <= Threshold {
			continue
		}
		out = append(out, Result{Order: o, Score: score, SortKey: SortKey(o, query)})
	}
	slices.SortStableFunc(out, func(a, b Result) int {
		if c := cmp.Compare(math.Floor(b.Score), math.Floor(a.Score)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.SortKey, a.SortKey); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return b.Order.OrderDate.Compare(a.Order.OrderDate)
	})
	return out
}

// Search is Rank without the scores. The input slice is not modified.
func (s *Scorer) Search(list []orders.Order, query string) []orders.Order {
	ranked := s.Rank(list, query)
	out := make([]orders.Order, len(ranked))
	for i, r := range ranked {
		out[i] = r.Order
	}
	return out
}
