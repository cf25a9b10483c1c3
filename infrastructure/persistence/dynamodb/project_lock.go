package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"taskdeps/application/ports"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
)

const (
	lockDuration  = 10 * time.Second
	lockWait      = 5 * time.Second
	lockRetryBase = 100 * time.Millisecond
)

// ProjectLock serializes project mutations across processes using
// DynamoDB conditional writes. The TTL attribute reaps locks abandoned
// by a crashed holder.
type ProjectLock struct {
	client    *dynamodb.Client
	tableName string
	ownerID   string
	logger    *zap.Logger
}

// NewProjectLock creates a new ProjectLock
func NewProjectLock(client *dynamodb.Client, tableName string, logger *zap.Logger) *ProjectLock {
	hostname, _ := os.Hostname()
	return &ProjectLock{
		client:    client,
		tableName: tableName,
		ownerID:   fmt.Sprintf("%s_%d", hostname, os.Getpid()),
		logger:    logger,
	}
}

// Lock acquires the project lock, retrying with backoff until lockWait
// elapses or the context is done.
func (l *ProjectLock) Lock(ctx context.Context, projectID valueobjects.ProjectID) (ports.UnlockFunc, error) {
	deadline := time.Now().Add(lockWait)
	retryInterval := lockRetryBase

	for {
		lockID, err := l.tryAcquire(ctx, projectID)
		if err == nil {
			return func() { l.release(projectID, lockID) }, nil
		}
		if !apperrors.IsConflict(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, apperrors.ErrProjectLockHeld.WithDetail("projectId", projectID.String())
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
			if retryInterval < time.Second {
				retryInterval = time.Duration(float64(retryInterval) * 1.5)
			}
		}
	}
}

func (l *ProjectLock) tryAcquire(ctx context.Context, projectID valueobjects.ProjectID) (string, error) {
	lockID := fmt.Sprintf("%s_%d", l.ownerID, time.Now().UnixNano())
	now := time.Now()
	expiresAt := now.Add(lockDuration)

	item := map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: lockPK(projectID)},
		"SK":         &types.AttributeValueMemberS{Value: "LOCK"},
		"LockID":     &types.AttributeValueMemberS{Value: lockID},
		"Owner":      &types.AttributeValueMemberS{Value: l.ownerID},
		"AcquiredAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		"ExpiresAt":  &types.AttributeValueMemberS{Value: expiresAt.Format(time.RFC3339)},
		"TTL":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())},
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	}

	if _, err := l.client.PutItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return "", apperrors.NewConflictError("project lock already held")
		}
		return "", apperrors.NewDatabaseError("acquire lock", err)
	}

	l.logger.Debug("Project lock acquired",
		zap.String("projectID", projectID.String()),
		zap.String("lockID", lockID),
	)
	return lockID, nil
}

// release deletes the lock only if we still own it; a lock that expired
// and was taken over must not be stolen back.
func (l *ProjectLock) release(projectID valueobjects.ProjectID, lockID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: lockPK(projectID)},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("LockID = :lockId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: lockID},
		},
	}

	if _, err := l.client.DeleteItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			l.logger.Warn("Project lock expired before release",
				zap.String("projectID", projectID.String()),
				zap.String("lockID", lockID),
			)
			return
		}
		l.logger.Error("Failed to release project lock",
			zap.Error(err),
			zap.String("projectID", projectID.String()),
		)
	}
}

func lockPK(projectID valueobjects.ProjectID) string {
	return fmt.Sprintf("LOCK#%s", projectID.String())
}
