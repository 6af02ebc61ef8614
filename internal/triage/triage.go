// Package triage decides the order in which the admin desk shows orders.
package triage

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
)

// Priority is an order's triage bucket. Lower values are shown first.
type Priority int

const (
	PriorityPickup Priority = iota + 1
	PriorityUrgentDelivery
	PriorityDelivery
	PriorityShipped
	PriorityFulfilled
	PriorityDelivered
)

// Priorities lists every bucket in display order.
var Priorities = []Priority{
	PriorityPickup,
	PriorityUrgentDelivery,
	PriorityDelivery,
	PriorityShipped,
	PriorityFulfilled,
	PriorityDelivered,
}

var priorityNames = map[Priority]string{
	PriorityPickup:         "PICKUP",
	PriorityUrgentDelivery: "URGENT_DELIVERY",
	PriorityDelivery:       "DELIVERY",
	PriorityShipped:        "SHIPPED",
	PriorityFulfilled:      "FULFILLED",
	PriorityDelivered:      "DELIVERED",
}

func (p Priority) String() string {
	if n, ok := priorityNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// urgentAfter is how long a pending delivery may wait before it escalates.
const urgentAfter = 24 * time.Hour

var statusPriority = map[orders.Status]Priority{
	orders.StatusShipped:   PriorityShipped,
	orders.StatusFulfilled: PriorityFulfilled,
	orders.StatusDelivered: PriorityDelivered,
}

// Classifier assigns priorities relative to its clock. Priorities are not
// stable over time: a pending delivery escalates once it is older than a day.
type Classifier struct {
	nowFunc func() time.Time
}

// NewClassifier returns a Classifier reading the time from now
// (nil means time.Now).
func NewClassifier(now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{nowFunc: now}
}

// Priority classifies o against the current time.
func (c *Classifier) Priority(o orders.Order) Priority {
	return priorityAt(o, c.nowFunc())
}

func priorityAt(o orders.Order, now time.Time) Priority {
	status := o.Status.Normalize()
	if status == orders.StatusPending {
		if o.ShippingMethod.Normalize() == orders.ShippingPickup {
			return PriorityPickup
		}
		if now.Sub(o.OrderDate) > urgentAfter {
			return PriorityUrgentDelivery
		}
		return PriorityDelivery
	}
	if p, ok := statusPriority[status]; ok {
		return p
	}
	return PriorityDelivery
}

// Filter is the admin desk's active order tab.
type Filter string

const (
	FilterAll       Filter = "ALL"
	FilterPickup    Filter = "PICKUP"
	FilterPriority  Filter = "PRIORITY"
	FilterPending   Filter = "PENDING"
	FilterDelivery  Filter = "DELIVERY"
	FilterFulfilled Filter = "FULFILLED"
	FilterShipped   Filter = "SHIPPED"
	FilterDelivered Filter = "DELIVERED"
)

// Filters lists every tab.
var Filters = []Filter{
	FilterAll, FilterPickup, FilterPriority, FilterPending,
	FilterDelivery, FilterFulfilled, FilterShipped, FilterDelivered,
}

// ParseFilter parses s case-insensitively; an empty string is FilterAll.
func ParseFilter(s string) (Filter, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// FilterByCategory returns the orders that belong to filter's tab, keeping
// their relative order.
func (c *Classifier) FilterByCategory(list []orders.Order, filter Filter) []orders.Order {
	now := c.nowFunc()
	out := make([]orders.Order, 0, len(list))
	for _, o := range list {
		if inCategory(o, filter, now) {
			out = append(out, o)
		}
	}
	return out
}

func inCategory(o orders.Order, filter Filter, now time.Time) bool {
	status := o.Status.Normalize()
	switch filter {
	case FilterPickup:
		return priorityAt(o, now) == PriorityPickup
	case FilterPriority:
		return priorityAt(o, now) == PriorityUrgentDelivery
	case FilterPending:
		return status == orders.StatusPending
	case FilterDelivery:
		return status == orders.StatusPending && o.ShippingMethod.Normalize() != orders.ShippingPickup
	case FilterFulfilled:
		return status == orders.StatusShipped || status == orders.StatusFulfilled || status == orders.StatusDelivered
	case FilterShipped:
		return status == orders.StatusShipped
	case FilterDelivered:
		return status == orders.StatusDelivered
	default:
		return true
	}
}

// fulfilledRank orders the FULFILLED tab: shipped, fulfilled, delivered, rest.
func fulfilledRank(s orders.Status) int {
	switch s.Normalize() {
	case orders.StatusShipped:
		return 1
	case orders.StatusFulfilled:
		return 2
	case orders.StatusDelivered:
		return 3
	default:
		return 4
	}
}

// Compose returns list in display order for filter. It only orders; use
// FilterByCategory for membership. The input slice is not modified.
//
// The FULFILLED tab groups shipped, fulfilled and delivered orders; shipped
// orders are newest first, everything else oldest first. Every other tab sorts
// by Priority and then oldest first.
func (c *Classifier) Compose(list []orders.Order, filter Filter) []orders.Order {
	if filter == FilterFulfilled {
		out := make([]orders.Order, len(list))
		copy(out, list)
		slices.SortStableFunc(out, func(a, b orders.Order) int {
			ra, rb := fulfilledRank(a.Status), fulfilledRank(b.Status)
			if ra != rb {
				return cmp.Compare(ra, rb)
			}
			if ra == 1 {
				return b.OrderDate.Compare(a.OrderDate)
			}
			return a.OrderDate.Compare(b.OrderDate)
		})
		return out
	}

	// classify once so one pass sees a single "now"
	now := c.nowFunc()
	idx := make([]int, len(list))
	prio := make([]Priority, len(list))
	for i, o := range list {
		idx[i] = i
		prio[i] = priorityAt(o, now)
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		if c := cmp.Compare(prio[a], prio[b]); c != 0 {
			return c
		}
		return list[a].OrderDate.Compare(list[b].OrderDate)
	})
	out := make([]orders.Order, len(list))
	for i, j := range idx {
		out[i] = list[j]
	}
	return out
}

// Summarize counts orders per priority bucket. Every bucket is present.
func (c *Classifier) Summarize(list []orders.Order) map[Priority]int {
	now := c.nowFunc()
	counts := make(map[Priority]int, len(Priorities))
	for _, p := range Priorities {
		counts[p] = 0
	}
	for _, o := range list {
		counts[priorityAt(o, now)]++
	}
	return counts
}
