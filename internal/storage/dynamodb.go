package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/rs/zerolog"
)

// Stream tables are keyed by Stream (agent#date or date) and SortKey
// (RFC3339Nano timestamp#id), so a Query returns a stream in time order.
const (
	streamKey = "Stream"
	sortKey   = "SortKey"
)

type agentEventItem struct {
	Stream  string `dynamodbav:"Stream"`
	SortKey string `dynamodbav:"SortKey"`
	types.AgentEvent
}

type wrapUpItem struct {
	Stream  string `dynamodbav:"Stream"`
	SortKey string `dynamodbav:"SortKey"`
	types.WrapUp
}

type auditItem struct {
	Stream  string `dynamodbav:"Stream"`
	SortKey string `dynamodbav:"SortKey"`
	types.SupervisorAction
}

func agentStream(agent, date string) string { return agent + "#" + date }

func orderKey(ts time.Time, id string) string {
	return ts.UTC().Format(time.RFC3339Nano) + "#" + id
}

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client *dynamodb.Client
	config Config
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*DynamoDBStore, error) {
	client, err := NewDynamoClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}

	// Create tables in local mode
	if cfg.Mode == ModeDynamoLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

// NewDynamoClient builds a client for the configured mode
func NewDynamoClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	if cfg.Mode == ModeDynamoLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs on EC2
		// instances when static credentials are intended.
		return dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		}), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

func (s *DynamoDBStore) put(ctx context.Context, table string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	// a duplicate SortKey would silently overwrite an immutable record
	cond := expression.AttributeNotExists(expression.Name(sortKey))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		return fmt.Errorf("failed to put item in %s: %w", table, err)
	}
	return nil
}

// queryStream pages through one stream in sort key order
func (s *DynamoDBStore) queryStream(ctx context.Context, table, stream string) ([]map[string]dbtypes.AttributeValue, error) {
	keyCond := expression.Key(streamKey).Equal(expression.Value(stream))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	var items []map[string]dbtypes.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", table, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (s *DynamoDBStore) AppendAgentEvent(ctx context.Context, event types.AgentEvent) error {
	if err := ValidAgentKey(event.Agent); err != nil {
		return err
	}
	return s.put(ctx, s.config.AgentEventsTable, agentEventItem{
		Stream:     agentStream(event.Agent, types.DateKey(event.Timestamp)),
		SortKey:    orderKey(event.Timestamp, event.ID),
		AgentEvent: event,
	})
}

func (s *DynamoDBStore) AgentEvents(ctx context.Context, agent, date string) ([]types.AgentEvent, error) {
	items, err := s.queryStream(ctx, s.config.AgentEventsTable, agentStream(agent, date))
	if err != nil {
		return nil, err
	}
	var rows []agentEventItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent events: %w", err)
	}
	events := make([]types.AgentEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.AgentEvent)
	}
	return events, nil
}

func (s *DynamoDBStore) AppendWrapUp(ctx context.Context, wrapUp types.WrapUp) error {
	if err := ValidAgentKey(wrapUp.Agent); err != nil {
		return err
	}
	return s.put(ctx, s.config.WrapUpsTable, wrapUpItem{
		Stream:  agentStream(wrapUp.Agent, types.DateKey(wrapUp.Timestamp)),
		SortKey: orderKey(wrapUp.Timestamp, wrapUp.ID),
		WrapUp:  wrapUp,
	})
}

func (s *DynamoDBStore) WrapUps(ctx context.Context, agent, date string) ([]types.WrapUp, error) {
	items, err := s.queryStream(ctx, s.config.WrapUpsTable, agentStream(agent, date))
	if err != nil {
		return nil, err
	}
	var rows []wrapUpItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wrap-ups: %w", err)
	}
	out := make([]types.WrapUp, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.WrapUp)
	}
	return out, nil
}

func (s *DynamoDBStore) AppendSupervisorAction(ctx context.Context, action types.SupervisorAction) error {
	return s.put(ctx, s.config.AuditTable, auditItem{
		Stream:           types.DateKey(action.Timestamp),
		SortKey:          orderKey(action.Timestamp, action.ID),
		SupervisorAction: action,
	})
}

func (s *DynamoDBStore) SupervisorActions(ctx context.Context, date string) ([]types.SupervisorAction, error) {
	items, err := s.queryStream(ctx, s.config.AuditTable, date)
	if err != nil {
		return nil, err
	}
	var rows []auditItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit entries: %w", err)
	}
	out := make([]types.SupervisorAction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.SupervisorAction)
	}
	return out, nil
}

// GetCallRecords returns every finished queue call for one day
func (s *DynamoDBStore) GetCallRecords(ctx context.Context, dateKey string) ([]types.CallRecord, error) {
	keyCond := expression.Key("DateKey").Equal(expression.Value(dateKey))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.CallRecordsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var records []types.CallRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query call records: %w", err)
		}
		var batch []types.CallRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal call records: %w", err)
		}
		records = append(records, batch...)
	}
	return records, nil
}

// SaveCallRecord stores one finished queue call
func (s *DynamoDBStore) SaveCallRecord(ctx context.Context, record types.CallRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal call record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.CallRecordsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save call record: %w", err)
	}
	return nil
}
