package triage

import (
	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/search"
)

// Entry is one row of the admin order list.
type Entry struct {
	Order    orders.Order
	Priority Priority
	// Score is the search relevance, 0 for a blank query.
	Score float64
}

// Pipeline runs the admin list: tab membership, text search, display order.
// It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	Scorer     *search.Scorer
	Classifier *Classifier
}

// NewPipeline wires a scorer and a classifier.
func NewPipeline(scorer *search.Scorer, classifier *Classifier) *Pipeline {
	return &Pipeline{Scorer: scorer, Classifier: classifier}
}

// Run filters list to filter's tab, keeps the orders matching query and
// returns them in display order.
func (p *Pipeline) Run(list []orders.Order, query string, filter Filter) []Entry {
	members := p.Classifier.FilterByCategory(list, filter)
	ranked := p.Scorer.Rank(members, query)

	matched := make([]orders.Order, len(ranked))
	scores := make(map[string]float64, len(ranked))
	for i, r := range ranked {
		matched[i] = r.Order
		scores[r.Order.OrderID] = r.Score
	}

	composed := p.Classifier.Compose(matched, filter)
	out := make([]Entry, len(composed))
	for i, o := range composed {
		out[i] = Entry{
			Order:    o,
			Priority: p.Classifier.Priority(o),
			Score:    scores[o.OrderID],
		}
	}
	return out
}
