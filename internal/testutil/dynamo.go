// Package testutil provides in-memory AWS client fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// primary key attributes, checked in this order. Orders carry customer_id and
// idempotency items carry order_id, so the order matters.
var pkAttrs = []string{"idempotency_key", "order_id", "customer_id"}

// Dynamo is a small in-memory DynamoDB supporting the expressions the stores
// issue: attribute_not_exists conditions, "#x = :v" conditions, SET updates
// with plain values or if_not_exists(a, :z) + :inc, transactions and scans.
// NOTE: not a general expression evaluator.
type Dynamo struct {
	mu     sync.Mutex
	Tables map[string]map[string]map[string]types.AttributeValue

	// Err, when set, is returned by every call.
	Err error
	// PageSize limits Scan pages (0 means everything in one page).
	PageSize int

	Calls map[string]int
}

// NewDynamo returns an empty fake.
func NewDynamo() *Dynamo {
	return &Dynamo{
		Tables: map[string]map[string]map[string]types.AttributeValue{},
		Calls:  map[string]int{},
	}
}

// Seed stores item in table, replacing any previous item with the same key.
func (d *Dynamo) Seed(table string, item map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pk, err := primaryKey(item)
	if err != nil {
		panic(err)
	}
	d.table(table)[pk] = item
}

// Item returns the stored item or nil.
func (d *Dynamo) Item(table, pk string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.table(table)[pk]
}

func (d *Dynamo) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := d.Tables[name]
	if !ok {
		t = map[string]map[string]types.AttributeValue{}
		d.Tables[name] = t
	}
	return t
}

func primaryKey(item map[string]types.AttributeValue) (string, error) {
	for _, attr := range pkAttrs {
		if v, ok := item[attr].(*types.AttributeValueMemberS); ok {
			return v.Value, nil
		}
	}
	return "", errors.New("no primary key attribute")
}

func (d *Dynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["PutItem"]++
	if d.Err != nil {
		return nil, d.Err
	}
	pk, err := primaryKey(in.Item)
	if err != nil {
		return nil, err
	}
	tbl := d.table(*in.TableName)
	if !conditionHolds(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, tbl[pk]) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	tbl[pk] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["GetItem"]++
	if d.Err != nil {
		return nil, d.Err
	}
	pk, err := primaryKey(in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := d.table(*in.TableName)[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["UpdateItem"]++
	if d.Err != nil {
		return nil, d.Err
	}
	pk, err := primaryKey(in.Key)
	if err != nil {
		return nil, err
	}
	tbl := d.table(*in.TableName)
	item, exists := tbl[pk]
	if !conditionHolds(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, item) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if !exists {
		item = map[string]types.AttributeValue{}
		for k, v := range in.Key {
			item[k] = v
		}
	}
	updated := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		updated[k] = v
	}
	if err := applySet(in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, updated); err != nil {
		return nil, err
	}
	tbl[pk] = updated
	return &dyn.UpdateItemOutput{Attributes: updated}, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["TransactWriteItems"]++
	if d.Err != nil {
		return nil, d.Err
	}
	for _, it := range in.TransactItems {
		p := it.Put
		if p == nil {
			return nil, errors.New("only Put is supported in transactions")
		}
		pk, err := primaryKey(p.Item)
		if err != nil {
			return nil, err
		}
		if !conditionHolds(p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues, d.table(*p.TableName)[pk]) {
			return nil, &types.TransactionCanceledException{}
		}
	}
	for _, it := range in.TransactItems {
		pk, _ := primaryKey(it.Put.Item)
		d.table(*it.Put.TableName)[pk] = it.Put.Item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *Dynamo) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["Scan"]++
	if d.Err != nil {
		return nil, d.Err
	}
	tbl := d.table(*in.TableName)
	keys := make([]string, 0, len(tbl))
	for k := range tbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		last, err := primaryKey(in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = sort.SearchStrings(keys, last) + 1
	}
	end := len(keys)
	if d.PageSize > 0 && start+d.PageSize < end {
		end = start + d.PageSize
	}

	out := &dyn.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, tbl[k])
	}
	if end < len(keys) {
		last := tbl[keys[end-1]]
		for _, attr := range pkAttrs {
			if v, ok := last[attr]; ok {
				out.LastEvaluatedKey = map[string]types.AttributeValue{attr: v}
				break
			}
		}
	}
	return out, nil
}

func resolveName(tok string, names map[string]string) string {
	if strings.HasPrefix(tok, "#") {
		if n, ok := names[tok]; ok {
			return n
		}
	}
	return tok
}

func conditionHolds(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) bool {
	if expr == nil || *expr == "" {
		return true
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_not_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")"), names)
			if item != nil {
				if _, ok := item[attr]; ok {
					return false
				}
			}
		case strings.HasPrefix(clause, "attribute_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")"), names)
			if item == nil {
				return false
			}
			if _, ok := item[attr]; !ok {
				return false
			}
		default:
			lhs, rhs, ok := strings.Cut(clause, "=")
			if !ok {
				return false
			}
			attr := resolveName(strings.TrimSpace(lhs), names)
			want, _ := values[strings.TrimSpace(rhs)].(*types.AttributeValueMemberS)
			got, _ := item[attr].(*types.AttributeValueMemberS)
			if item == nil || want == nil || got == nil || got.Value != want.Value {
				return false
			}
		}
	}
	return true
}

func applySet(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	if expr == nil {
		return nil
	}
	body, ok := strings.CutPrefix(strings.TrimSpace(*expr), "SET ")
	if !ok {
		return fmt.Errorf("unsupported update expression %q", *expr)
	}
	for _, assignment := range splitTopLevel(body) {
		lhs, rhs, ok := strings.Cut(assignment, "=")
		if !ok {
			return fmt.Errorf("bad assignment %q", assignment)
		}
		attr := resolveName(strings.TrimSpace(lhs), names)
		rhs = strings.TrimSpace(rhs)

		if strings.HasPrefix(rhs, "if_not_exists(") {
			// if_not_exists(a, :zero) + :inc
			inner, inc, _ := strings.Cut(rhs, ")")
			_, zeroTok, _ := strings.Cut(inner, ",")
			incTok := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(inc), "+"))
			base := numberOf(values[strings.TrimSpace(zeroTok)])
			if cur, ok := item[attr]; ok {
				base = numberOf(cur)
			}
			item[attr] = &types.AttributeValueMemberN{Value: strconv.Itoa(base + numberOf(values[incTok]))}
			continue
		}
		v, ok := values[rhs]
		if !ok {
			return fmt.Errorf("missing value %s", rhs)
		}
		item[attr] = v
	}
	return nil
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

func numberOf(v types.AttributeValue) int {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	i, _ := strconv.Atoi(n.Value)
	return i
}
