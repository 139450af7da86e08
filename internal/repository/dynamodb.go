package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"ordernotify/internal/config"
	"ordernotify/internal/domain"
)

const (
	metadataSK = "METADATA"
	counterPK  = "COUNTER#orders"
)

// DynamoAPI подмножество клиента DynamoDB, которым пользуется DynamoStore
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoStore хранилище заказов в таблице DynamoDB (PK=ORDER#<orderId>, SK=METADATA)
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

var _ OrderStore = (*DynamoStore)(nil)

type dynamoOrderRecord struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	ID            int64  `dynamodbav:"id"`
	OrderID       string `dynamodbav:"order_id"`
	CustomerName  string `dynamodbav:"customer_name"`
	CustomerEmail string `dynamodbav:"customer_email"`
	Address       string `dynamodbav:"address"`
	ItemsJSON     string `dynamodbav:"items_json"`
	Total         string `dynamodbav:"total"`
	Channel       string `dynamodbav:"channel"`
	CreatedAt     string `dynamodbav:"created_at"`
}

func NewDynamoDBClient(ctx context.Context, cfg config.Store) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

func orderPK(orderID string) string { return "ORDER#" + orderID }

// EnsureSchema создаёт таблицу, если её нет. Гонка двух создателей не ошибка.
func (r *DynamoStore) EnsureSchema(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("%w: describe table: %w", ErrStorageUnavailable, err)
	}

	_, err = r.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(r.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("%w: create table: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// nextID атомарно увеличивает счётчик и возвращает суррогатный id строки
func (r *DynamoStore) nextID(ctx context.Context) (int64, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterPK},
			"SK": &types.AttributeValueMemberS{Value: metadataSK},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	var seq int64
	if err := attributevalue.Unmarshal(out.Attributes["seq"], &seq); err != nil {
		return 0, fmt.Errorf("decode seq: %w", err)
	}
	return seq, nil
}

// Save пишет заказ условно: attribute_not_exists(PK) не даёт перезаписать существующий.
func (r *DynamoStore) Save(ctx context.Context, o *domain.Order) error {
	items, err := marshalItems(o.Items)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	id, err := r.nextID(ctx)
	if err != nil {
		return fmt.Errorf("%w: allocate id: %w", ErrStorageUnavailable, err)
	}

	av, err := attributevalue.MarshalMap(dynamoOrderRecord{
		PK:            orderPK(o.OrderID),
		SK:            metadataSK,
		ID:            id,
		OrderID:       o.OrderID,
		CustomerName:  o.Customer.Name,
		CustomerEmail: o.Customer.Email,
		Address:       o.Address,
		ItemsJSON:     string(items),
		Total:         o.Total.String(),
		Channel:       string(o.Channel),
		CreatedAt:     o.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("%w: marshal order: %w", ErrStorageUnavailable, err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, o.OrderID)
		}
		return fmt.Errorf("%w: put item: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *DynamoStore) GetByOrderID(ctx context.Context, orderID string) (*domain.StoredOrder, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: orderPK(orderID)},
			"SK": &types.AttributeValueMemberS{Value: metadataSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get item: %w", ErrStorageUnavailable, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var rec dynamoOrderRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	so := &domain.StoredOrder{ID: rec.ID}
	so.OrderID = rec.OrderID
	so.Customer = domain.Customer{Name: rec.CustomerName, Email: rec.CustomerEmail}
	so.Address = rec.Address
	so.Channel = domain.Channel(rec.Channel)
	if so.Items, err = unmarshalItems([]byte(rec.ItemsJSON)); err != nil {
		return nil, err
	}
	if so.Total, err = decimal.NewFromString(rec.Total); err != nil {
		return nil, fmt.Errorf("decode total: %w", err)
	}
	if so.Timestamp, err = time.Parse(time.RFC3339Nano, rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	return so, nil
}

func (r *DynamoStore) Ping(ctx context.Context) error {
	if _, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)}); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *DynamoStore) Close() error { return nil }
