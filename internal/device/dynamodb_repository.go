package device

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/spouty/spouty/internal/plant"
)

// DynamoDBAPI is the subset of the DynamoDB client the repository uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// dynamoItem is the stored item. Config and status are split into top-level
// attributes so a SET on one never needs a parent map to exist.
type dynamoItem struct {
	DeviceID         string               `dynamodbav:"device_id"`
	LEDState         string               `dynamodbav:"ledState,omitempty"`
	ConfigDifficulty string               `dynamodbav:"configDifficulty,omitempty"`
	ConfigLocation   *plant.Location      `dynamodbav:"configLocation,omitempty"`
	Sensors          *plant.SensorReading `dynamodbav:"sensors,omitempty"`
	CalculatedStatus string               `dynamodbav:"calculatedStatus,omitempty"`
	StatusLastUpdate int64                `dynamodbav:"statusLastUpdate,omitempty"`
}

// DynamoDBRepository stores each device as one DynamoDB item keyed by device_id.
type DynamoDBRepository struct {
	client    DynamoDBAPI
	tableName string
}

// NewDynamoDBRepository creates a DynamoDB-backed repository.
func NewDynamoDBRepository(client DynamoDBAPI, tableName string) *DynamoDBRepository {
	return &DynamoDBRepository{client: client, tableName: tableName}
}

func (r *DynamoDBRepository) key(deviceID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"device_id": &types.AttributeValueMemberS{Value: deviceID},
	}
}

// Get retrieves a device record.
func (r *DynamoDBRepository) Get(ctx context.Context, deviceID string) (*Record, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(deviceID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrDeviceNotFound
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device: %w", err)
	}
	return item.record(), nil
}

// Merge updates only the attributes the patch names.
func (r *DynamoDBRepository) Merge(ctx context.Context, deviceID string, patch Patch) error {
	values := make(map[string]interface{})

	if patch.LEDState != nil {
		values["ledState"] = string(*patch.LEDState)
	}
	if patch.Difficulty != nil {
		values["configDifficulty"] = string(*patch.Difficulty)
	}
	if patch.Location != nil {
		values["configLocation"] = *patch.Location
	}
	if patch.Sensors != nil {
		values["sensors"] = *patch.Sensors
	}
	if patch.Status != nil {
		if patch.Status.CalculatedStatus != "" {
			values["calculatedStatus"] = string(patch.Status.CalculatedStatus)
		}
		if patch.Status.LastUpdate != nil {
			values["statusLastUpdate"] = patch.Status.LastUpdate.UnixMilli()
		}
	}
	if len(values) == 0 {
		return nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	expr := "SET "
	attrNames := make(map[string]string, len(names))
	attrValues := make(map[string]types.AttributeValue, len(names))
	for i, name := range names {
		av, err := attributevalue.Marshal(values[name])
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		if i > 0 {
			expr += ", "
		}
		expr += fmt.Sprintf("#f%d = :v%d", i, i)
		attrNames[fmt.Sprintf("#f%d", i)] = name
		attrValues[fmt.Sprintf(":v%d", i)] = av
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(deviceID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  attrNames,
		ExpressionAttributeValues: attrValues,
	})
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	return nil
}

func (i *dynamoItem) record() *Record {
	rec := &Record{
		LEDState: LEDState(i.LEDState),
		Config: plant.DeviceConfig{
			Difficulty: plant.DifficultyLevel(i.ConfigDifficulty),
			Location:   i.ConfigLocation,
		},
		Sensors: i.Sensors,
		Status:  StatusInfo{CalculatedStatus: plant.Status(i.CalculatedStatus)},
	}
	if i.StatusLastUpdate > 0 {
		t := time.UnixMilli(i.StatusLastUpdate).UTC()
		rec.Status.LastUpdate = &t
	}
	return rec
}

// Ensure DynamoDBRepository implements Repository interface.
var _ Repository = (*DynamoDBRepository)(nil)
