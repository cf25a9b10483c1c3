// Package dynamodb provides the production storage backend. Edges live
// in a single table partitioned by project, with global secondary
// indexes for edge-ID and per-task lookups.
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"taskdeps/domain/core/aggregates"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
	"taskdeps/pkg/utils"
)

// TableConfig names the edge table and its indexes.
type TableConfig struct {
	TableName     string
	EdgeIndexName string // GSI2PK = EDGEID#<edgeID>
	TaskIndexName string // GSI1PK = TASK#<taskID>
	DepIndexName  string // GSI3PK = DEPTASK#<taskID>
}

// EdgeStore implements the EdgeRepository interface using DynamoDB
type EdgeStore struct {
	client *dynamodb.Client
	config TableConfig
	logger *zap.Logger
}

// NewEdgeStore creates a new EdgeStore
func NewEdgeStore(client *dynamodb.Client, config TableConfig, logger *zap.Logger) *EdgeStore {
	return &EdgeStore{
		client: client,
		config: config,
		logger: logger,
	}
}

// edgeItem represents the DynamoDB item structure for a dependency edge
type edgeItem struct {
	PK              string `dynamodbav:"PK"` // PROJECT#<projectID>
	SK              string `dynamodbav:"SK"` // EDGE#<edgeID>
	GSI1PK          string `dynamodbav:"GSI1PK"`
	GSI1SK          string `dynamodbav:"GSI1SK"`
	GSI2PK          string `dynamodbav:"GSI2PK"`
	GSI2SK          string `dynamodbav:"GSI2SK"`
	GSI3PK          string `dynamodbav:"GSI3PK"`
	GSI3SK          string `dynamodbav:"GSI3SK"`
	EntityType      string `dynamodbav:"EntityType"`
	EdgeID          string `dynamodbav:"EdgeID"`
	ProjectID       string `dynamodbav:"ProjectID"`
	TaskID          string `dynamodbav:"TaskID"`
	DependsOnTaskID string `dynamodbav:"DependsOnTaskID"`
	PairKey         string `dynamodbav:"PairKey"`
	CreatedAt       string `dynamodbav:"CreatedAt"`
}

func (s *EdgeStore) Insert(ctx context.Context, edge *aggregates.DependencyEdge) error {
	item := edgeItem{
		PK:              projectPK(edge.ProjectID),
		SK:              edgeSK(edge.ID),
		GSI1PK:          fmt.Sprintf("TASK#%s", edge.TaskID.String()),
		GSI1SK:          edgeSK(edge.ID),
		GSI2PK:          fmt.Sprintf("EDGEID#%s", edge.ID.String()),
		GSI2SK:          "METADATA",
		GSI3PK:          fmt.Sprintf("DEPTASK#%s", edge.DependsOnTaskID.String()),
		GSI3SK:          edgeSK(edge.ID),
		EntityType:      "DEPENDENCY_EDGE",
		EdgeID:          edge.ID.String(),
		ProjectID:       edge.ProjectID.String(),
		TaskID:          edge.TaskID.String(),
		DependsOnTaskID: edge.DependsOnTaskID.String(),
		PairKey:         edge.PairKey(),
		CreatedAt:       utils.FormatRFC3339(edge.CreatedAt),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.config.TableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return apperrors.ErrDuplicateEdge.WithDetail("edgeId", edge.ID.String())
		}
		s.logger.Error("Failed to save edge to DynamoDB",
			zap.Error(err),
			zap.String("edgeID", edge.ID.String()),
		)
		return apperrors.NewDatabaseError("put edge", err)
	}
	return nil
}

func (s *EdgeStore) GetByID(ctx context.Context, id valueobjects.EdgeID) (*aggregates.DependencyEdge, error) {
	keyCond := expression.Key("GSI2PK").Equal(expression.Value(fmt.Sprintf("EDGEID#%s", id.String())))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TableName),
		IndexName:                 aws.String(s.config.EdgeIndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("query edge by ID", err)
	}
	if len(out.Items) == 0 {
		return nil, apperrors.ErrEdgeNotFound.WithDetail("edgeId", id.String())
	}
	return unmarshalEdge(out.Items[0])
}

func (s *EdgeStore) Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.EdgeID) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: projectPK(projectID)},
			"SK": &types.AttributeValueMemberS{Value: edgeSK(id)},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}

	if _, err := s.client.DeleteItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return apperrors.ErrEdgeNotFound.WithDetail("edgeId", id.String())
		}
		return apperrors.NewDatabaseError("delete edge", err)
	}
	return nil
}

func (s *EdgeStore) DeleteForTask(ctx context.Context, projectID valueobjects.ProjectID, taskID valueobjects.TaskID) (int, error) {
	edges, err := s.ForProject(ctx, projectID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, edge := range edges {
		if !edge.Touches(taskID) {
			continue
		}
		if err := s.Delete(ctx, projectID, edge.ID); err != nil {
			// Holder of the project lock; a concurrent removal is the
			// only way the edge can be gone already.
			if apperrors.IsNotFound(err) {
				continue
			}
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *EdgeStore) ForProject(ctx context.Context, projectID valueobjects.ProjectID) ([]*aggregates.DependencyEdge, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(projectPK(projectID))).
		And(expression.Key("SK").BeginsWith("EDGE#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	var edges []*aggregates.DependencyEdge
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.TableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, apperrors.NewDatabaseError("query project edges", err)
		}
		for _, item := range out.Items {
			edge, err := unmarshalEdge(item)
			if err != nil {
				return nil, err
			}
			edges = append(edges, edge)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return edges, nil
}

func (s *EdgeStore) ForTask(ctx context.Context, taskID valueobjects.TaskID) (dependsOn, blocks []*aggregates.DependencyEdge, err error) {
	dependsOn, err = s.queryIndex(ctx, s.config.TaskIndexName, "GSI1PK", fmt.Sprintf("TASK#%s", taskID.String()))
	if err != nil {
		return nil, nil, err
	}
	blocks, err = s.queryIndex(ctx, s.config.DepIndexName, "GSI3PK", fmt.Sprintf("DEPTASK#%s", taskID.String()))
	if err != nil {
		return nil, nil, err
	}
	return dependsOn, blocks, nil
}

func (s *EdgeStore) queryIndex(ctx context.Context, indexName, keyAttr, keyValue string) ([]*aggregates.DependencyEdge, error) {
	keyCond := expression.Key(keyAttr).Equal(expression.Value(keyValue))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	var edges []*aggregates.DependencyEdge
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.TableName),
			IndexName:                 aws.String(indexName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, apperrors.NewDatabaseError("query edge index", err)
		}
		for _, item := range out.Items {
			edge, err := unmarshalEdge(item)
			if err != nil {
				return nil, err
			}
			edges = append(edges, edge)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return edges, nil
}

func unmarshalEdge(item map[string]types.AttributeValue) (*aggregates.DependencyEdge, error) {
	var raw edgeItem
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edge: %w", err)
	}

	edgeID, err := valueobjects.NewEdgeIDFromString(raw.EdgeID)
	if err != nil {
		return nil, fmt.Errorf("stored edge has invalid ID %q: %w", raw.EdgeID, err)
	}
	projectID, err := valueobjects.NewProjectIDFromString(raw.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("stored edge has invalid project %q: %w", raw.ProjectID, err)
	}
	taskID, err := valueobjects.NewTaskIDFromString(raw.TaskID)
	if err != nil {
		return nil, fmt.Errorf("stored edge has invalid task %q: %w", raw.TaskID, err)
	}
	dependsOnID, err := valueobjects.NewTaskIDFromString(raw.DependsOnTaskID)
	if err != nil {
		return nil, fmt.Errorf("stored edge has invalid dependency %q: %w", raw.DependsOnTaskID, err)
	}
	createdAt, err := utils.ParseRFC3339(raw.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("stored edge has invalid timestamp %q: %w", raw.CreatedAt, err)
	}

	return aggregates.ReconstructDependencyEdge(edgeID, projectID, taskID, dependsOnID, createdAt), nil
}

func projectPK(projectID valueobjects.ProjectID) string {
	return fmt.Sprintf("PROJECT#%s", projectID.String())
}

func edgeSK(id valueobjects.EdgeID) string {
	return fmt.Sprintf("EDGE#%s", id.String())
}
