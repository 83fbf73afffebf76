// Package dynamo stores member documents as single DynamoDB items, memos
// held in a list attribute. Name lookups go through a global secondary
// index on Name.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dkeye/memoboard/internal/config"
	"github.com/dkeye/memoboard/internal/core"
	"github.com/dkeye/memoboard/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DBClient is the part of *dynamodb.Client the store uses.
type DBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type memberItem struct {
	ID    string     `dynamodbav:"ID"`
	Name  string     `dynamodbav:"Name"`
	Memos []memoItem `dynamodbav:"Memos"`
}

type memoItem struct {
	ID        string `dynamodbav:"ID"`
	Content   string `dynamodbav:"Content"`
	Timestamp string `dynamodbav:"Timestamp"`
}

type Store struct {
	db        DBClient
	tableName string
	indexName string
}

var _ core.MemberStore = (*Store)(nil)

func New(db DBClient, tableName, indexName string) *Store {
	return &Store{db: db, tableName: tableName, indexName: indexName}
}

// Open builds a client from the default AWS credential chain.
func Open(ctx context.Context, cfg config.DynamoDBConfig) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	log.Info().Str("module", "adapters.dynamo").Str("table", cfg.Table).Str("index", cfg.NameIndex).Msg("dynamodb store ready")
	return New(client, cfg.Table, cfg.NameIndex), nil
}

func (s *Store) FindByID(ctx context.Context, id domain.MemberID) (*domain.Member, error) {
	if id == "" {
		return nil, domain.ErrMemberNotFound
	}
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, domain.ErrMemberNotFound
	}
	return parseItem(out.Item)
}

// FindByName queries the name index for an ID, then reads the document
// itself so the result does not depend on the index projection.
func (s *Store) FindByName(ctx context.Context, name string) (*domain.Member, error) {
	keyExpr := expression.Key("Name").Equal(expression.Value(name))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query member %q: %w", name, err)
	}
	if len(out.Items) == 0 {
		return nil, domain.ErrMemberNotFound
	}

	var hit struct {
		ID string `dynamodbav:"ID"`
	}
	if err := attributevalue.UnmarshalMap(out.Items[0], &hit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index item: %w", err)
	}
	return s.FindByID(ctx, domain.MemberID(hit.ID))
}

func (s *Store) Create(ctx context.Context, m *domain.Member) (*domain.Member, error) {
	created := m.Clone()
	created.ID = domain.MemberID(uuid.NewString())

	cond := expression.Name("ID").AttributeNotExists()
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	item, err := toItem(created)
	if err != nil {
		return nil, err
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, fmt.Errorf("member id collision %s: %w", created.ID, err)
		}
		return nil, fmt.Errorf("put member: %w", err)
	}
	return created, nil
}

// Save overwrites the item unconditionally: last write wins.
func (s *Store) Save(ctx context.Context, m *domain.Member) error {
	if m.ID == "" {
		return fmt.Errorf("save member: %w", domain.ErrMemberNotFound)
	}
	item, err := toItem(m)
	if err != nil {
		return err
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put member %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) Close(context.Context) error { return nil }

func itemKey(id domain.MemberID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"ID": &types.AttributeValueMemberS{Value: string(id)},
	}
}

func toItem(m *domain.Member) (map[string]types.AttributeValue, error) {
	it := memberItem{ID: string(m.ID), Name: m.Name, Memos: make([]memoItem, 0, len(m.Memos))}
	for _, memo := range m.Memos {
		it.Memos = append(it.Memos, memoItem{
			ID:        string(memo.ID),
			Content:   memo.Content,
			Timestamp: memo.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal member: %w", err)
	}
	return item, nil
}

func parseItem(item map[string]types.AttributeValue) (*domain.Member, error) {
	var it memberItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member: %w", err)
	}
	m := &domain.Member{ID: domain.MemberID(it.ID), Name: it.Name, Memos: make([]domain.Memo, 0, len(it.Memos))}
	for _, memo := range it.Memos {
		ts, err := time.Parse(time.RFC3339Nano, memo.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("memo %s timestamp: %w", memo.ID, err)
		}
		m.Memos = append(m.Memos, domain.Memo{
			ID:        domain.MemoID(memo.ID),
			Content:   memo.Content,
			Timestamp: ts.UTC(),
		})
	}
	return m, nil
}
