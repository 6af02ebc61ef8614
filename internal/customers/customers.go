// Package customers reads customer records and attaches them to orders.
package customers

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-studio-orderdesk/internal/aws"
	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
)

// Customer is the item stored in the customers table.
type Customer struct {
	CustomerID  string `dynamodbav:"customer_id" json:"customer_id"`
	FirstName   string `dynamodbav:"first_name" json:"first_name"`
	LastName    string `dynamodbav:"last_name" json:"last_name"`
	Email       string `dynamodbav:"email" json:"email"`
	PhoneNumber string `dynamodbav:"phone_number,omitempty" json:"phone_number,omitempty"`
}

// Snapshot returns the subset of c that is attached to orders.
func (c Customer) Snapshot() *orders.CustomerSnapshot {
	return &orders.CustomerSnapshot{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
	}
}

// Getter fetches a single customer; (nil, nil) means not found.
type Getter interface {
	Get(ctx context.Context, customerID string) (*Customer, error)
}

// Store encapsulates reads on the customers table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a customers Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Get fetches a customer by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, customerID string) (*Customer, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"customer_id": &types.AttributeValueMemberS{Value: customerID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Customer
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	return &c, nil
}

// Put writes (or replaces) a customer record.
func (s *Store) Put(ctx context.Context, c Customer) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("put customer: %w", err)
	}
	return nil
}

// Attach returns a copy of list where every order that has a customer_id but no
// snapshot gets one from g. Each distinct customer is fetched once, with at most
// concurrency fetches in flight. Orders whose customer is missing keep a nil
// snapshot. The first fetch error aborts the whole call.
func Attach(ctx context.Context, g Getter, list []orders.Order, concurrency int) ([]orders.Order, error) {
	out := make([]orders.Order, len(list))
	copy(out, list)

	var ids []string
	seen := map[string]bool{}
	for _, o := range out {
		if o.Customer != nil || o.CustomerID == "" || seen[o.CustomerID] {
			continue
		}
		seen[o.CustomerID] = true
		ids = append(ids, o.CustomerID)
	}
	if len(ids) == 0 {
		return out, nil
	}

	var (
		mu    sync.Mutex
		found = make(map[string]*orders.CustomerSnapshot, len(ids))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}
	for _, id := range ids {
		eg.Go(func() error {
			c, err := g.Get(egCtx, id)
			if err != nil {
				return fmt.Errorf("customer %s: %w", id, err)
			}
			if c == nil {
				return nil
			}
			mu.Lock()
			found[id] = c.Snapshot()
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Customer == nil {
			out[i].Customer = found[out[i].CustomerID]
		}
	}
	return out, nil
}
