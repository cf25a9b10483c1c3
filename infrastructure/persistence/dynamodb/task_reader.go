package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"taskdeps/domain/core/entities"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
	"taskdeps/pkg/utils"
)

// batchGetLimit is the DynamoDB BatchGetItem ceiling.
const batchGetLimit = 100

// TaskReader reads task records written by the task CRUD service into
// the shared table. This package never writes them.
type TaskReader struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewTaskReader creates a new TaskReader
func NewTaskReader(client *dynamodb.Client, tableName string, logger *zap.Logger) *TaskReader {
	return &TaskReader{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// taskItem represents the DynamoDB item structure for a task record
type taskItem struct {
	PK        string `dynamodbav:"PK"` // TASKREC#<taskID>
	SK        string `dynamodbav:"SK"` // METADATA
	TaskID    string `dynamodbav:"TaskID"`
	ProjectID string `dynamodbav:"ProjectID"`
	Title     string `dynamodbav:"Title"`
	Status    string `dynamodbav:"Status"`
	Priority  int    `dynamodbav:"Priority"`
	DueDate   string `dynamodbav:"DueDate,omitempty"`
}

func (r *TaskReader) GetByID(ctx context.Context, id valueobjects.TaskID) (*entities.Task, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       taskKey(id),
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("get task", err)
	}
	if out.Item == nil {
		return nil, apperrors.ErrTaskNotFound.WithDetail("taskId", id.String())
	}
	return unmarshalTask(out.Item)
}

func (r *TaskReader) GetBatch(ctx context.Context, ids []valueobjects.TaskID) (map[valueobjects.TaskID]*entities.Task, error) {
	found := make(map[valueobjects.TaskID]*entities.Task, len(ids))

	for start := 0; start < len(ids); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(ids) {
			end = len(ids)
		}

		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, taskKey(id))
		}

		request := map[string]types.KeysAndAttributes{
			r.tableName: {Keys: keys},
		}
		for len(request) > 0 {
			out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: request,
			})
			if err != nil {
				return nil, apperrors.NewDatabaseError("batch get tasks", err)
			}
			for _, item := range out.Responses[r.tableName] {
				task, err := unmarshalTask(item)
				if err != nil {
					return nil, err
				}
				found[task.ID] = task
			}
			request = out.UnprocessedKeys
		}
	}
	return found, nil
}

func unmarshalTask(item map[string]types.AttributeValue) (*entities.Task, error) {
	var raw taskItem
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	taskID, err := valueobjects.NewTaskIDFromString(raw.TaskID)
	if err != nil {
		return nil, fmt.Errorf("stored task has invalid ID %q: %w", raw.TaskID, err)
	}
	projectID, err := valueobjects.NewProjectIDFromString(raw.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("stored task has invalid project %q: %w", raw.ProjectID, err)
	}

	var dueDate *time.Time
	if raw.DueDate != "" {
		parsed, err := utils.ParseRFC3339(raw.DueDate)
		if err != nil {
			return nil, fmt.Errorf("stored task has invalid due date %q: %w", raw.DueDate, err)
		}
		dueDate = &parsed
	}

	return &entities.Task{
		ID:        taskID,
		ProjectID: projectID,
		Title:     raw.Title,
		Status:    entities.TaskStatus(raw.Status),
		Priority:  entities.TaskPriority(raw.Priority),
		DueDate:   dueDate,
	}, nil
}

func taskKey(id valueobjects.TaskID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("TASKREC#%s", id.String())},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}
