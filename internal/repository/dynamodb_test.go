package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items keyed by PK and honours attribute_not_exists(PK).
type fakeDynamo struct {
	mu           sync.Mutex
	tableCreated bool
	createCalls  int
	seq          int64
	items        map[string]map[string]types.AttributeValue
	putErr       error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pkOf(item map[string]types.AttributeValue) string {
	if s, ok := item["PK"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	pk := pkOf(in.Item)
	if _, exists := f.items[pk]; exists && aws.ToString(in.ConditionExpression) == "attribute_not_exists(PK)" {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"seq": &types.AttributeValueMemberN{Value: strconv.FormatInt(f.seq, 10)},
	}}, nil
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.tableCreated {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found")}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (f *fakeDynamo) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.tableCreated {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists")}
	}
	f.tableCreated = true
	return &dynamodb.CreateTableOutput{}, nil
}

func TestDynamoStore_EnsureSchemaIdempotent(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, "orders")
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))
	assert.Equal(t, 1, fake.createCalls)
	assert.NoError(t, store.Ping(ctx))
}

func TestDynamoStore_SaveAndGet(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, "orders")
	ctx := context.Background()

	o := sampleOrder("ORD-DYNAMO0001")
	require.NoError(t, store.Save(ctx, o))

	got, err := store.GetByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, o.Customer, got.Customer)
	assert.True(t, o.Total.Equal(got.Total))
	assert.True(t, o.Timestamp.Equal(got.Timestamp))
	require.Len(t, got.Items, 3)
	assert.Equal(t, "Gadget", got.Items[1].Name)
}

func TestDynamoStore_DuplicateID(t *testing.T) {
	store := NewDynamoStore(newFakeDynamo(), "orders")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleOrder("ORD-DUP")))
	err := store.Save(ctx, sampleOrder("ORD-DUP"))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestDynamoStore_PutFailureIsUnavailable(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("throttled")
	store := NewDynamoStore(fake, "orders")

	err := store.Save(context.Background(), sampleOrder("ORD-1"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrDuplicateID)
}

func TestDynamoStore_NotFound(t *testing.T) {
	store := NewDynamoStore(newFakeDynamo(), "orders")
	_, err := store.GetByOrderID(context.Background(), "ORD-NONE")
	assert.ErrorIs(t, err, ErrNotFound)
}
