package customers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/testutil"
)

func TestStore_PutGet(t *testing.T) {
	mock := testutil.NewDynamo()
	s := NewStore(mock, "customers")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Customer{CustomerID: "c1", FirstName: "Nier", Email: "nier@example.com"}))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Nier", got.FirstName)

	missing, err := s.Get(ctx, "c2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

type countingGetter struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	data     map[string]*Customer
	err      error
}

func (g *countingGetter) Get(ctx context.Context, id string) (*Customer, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	g.mu.Lock()
	g.calls[id]++
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.data[id], nil
}

func TestAttach(t *testing.T) {
	g := &countingGetter{
		calls: map[string]int{},
		data: map[string]*Customer{
			"c1": {CustomerID: "c1", FirstName: "Ada", LastName: "Lovelace"},
			"c2": {CustomerID: "c2", FirstName: "Grace", LastName: "Hopper"},
		},
	}
	preset := &orders.CustomerSnapshot{FirstName: "Kept"}
	list := []orders.Order{
		{OrderID: "o1", CustomerID: "c1"},
		{OrderID: "o2", CustomerID: "c2"},
		{OrderID: "o3", CustomerID: "c1"},
		{OrderID: "o4", CustomerID: "ghost"},
		{OrderID: "o5"},
		{OrderID: "o6", CustomerID: "c2", Customer: preset},
	}

	got, err := Attach(context.Background(), g, list, 2)
	require.NoError(t, err)
	require.Len(t, got, len(list))

	assert.Equal(t, "Ada", got[0].Customer.FirstName)
	assert.Equal(t, "Grace", got[1].Customer.FirstName)
	assert.Equal(t, "Ada", got[2].Customer.FirstName)
	assert.Nil(t, got[3].Customer)
	assert.Nil(t, got[4].Customer)
	assert.Same(t, preset, got[5].Customer)

	assert.Equal(t, 1, g.calls["c1"], "each customer is fetched once")
	assert.LessOrEqual(t, g.maxSeen.Load(), int32(2))
	assert.Nil(t, list[0].Customer, "input slice must not be mutated")
}

func TestAttach_Error(t *testing.T) {
	g := &countingGetter{calls: map[string]int{}, err: errors.New("boom")}
	_, err := Attach(context.Background(), g, []orders.Order{{OrderID: "o1", CustomerID: "c1"}}, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer c1")
}
