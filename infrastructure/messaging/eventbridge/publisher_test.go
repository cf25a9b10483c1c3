package eventbridge

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"taskdeps/domain/core/valueobjects"
	"taskdeps/domain/events"
)

type fakePutEvents struct {
	inputs []*awseventbridge.PutEventsInput
	output *awseventbridge.PutEventsOutput
	err    error
}

func (f *fakePutEvents) PutEvents(ctx context.Context, params *awseventbridge.PutEventsInput, optFns ...func(*awseventbridge.Options)) (*awseventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	if f.output != nil {
		return f.output, nil
	}
	return &awseventbridge.PutEventsOutput{
		Entries: make([]types.PutEventsResultEntry, len(params.Entries)),
	}, nil
}

// brokenEvent defeats json.Marshal so the publisher has to skip it.
type brokenEvent struct {
	events.BaseEvent
	Ch chan int `json:"ch"`
}

func graphChangedEvent(t *testing.T) events.GraphChanged {
	t.Helper()
	projectID, err := valueobjects.NewProjectIDFromString("proj-1")
	require.NoError(t, err)
	return events.NewGraphChanged(projectID, time.Now())
}

func TestPublisher_PublishBatch(t *testing.T) {
	fake := &fakePutEvents{}
	publisher := NewPublisher(fake, "graph-events", zap.NewNop())

	projectID, err := valueobjects.NewProjectIDFromString("proj-1")
	require.NoError(t, err)
	taskID, err := valueobjects.NewTaskIDFromString(uuid.New().String())
	require.NoError(t, err)
	dependsOnID, err := valueobjects.NewTaskIDFromString(uuid.New().String())
	require.NoError(t, err)

	batch := []events.DomainEvent{
		events.NewDependencyAdded(projectID, valueobjects.NewEdgeID(), taskID, dependsOnID, time.Now()),
		events.NewGraphChanged(projectID, time.Now()),
	}
	require.NoError(t, publisher.PublishBatch(context.Background(), batch))

	require.Len(t, fake.inputs, 1)
	require.Len(t, fake.inputs[0].Entries, 2)
	assert.Equal(t, "dependency.added", aws.ToString(fake.inputs[0].Entries[0].DetailType))
	assert.Equal(t, events.GraphChangedType, aws.ToString(fake.inputs[0].Entries[1].DetailType))
	assert.Equal(t, "graph-events", aws.ToString(fake.inputs[0].Entries[0].EventBusName))
}

func TestPublisher_SkipsUnmarshalableEvents(t *testing.T) {
	fake := &fakePutEvents{}
	publisher := NewPublisher(fake, "graph-events", zap.NewNop())

	bad := brokenEvent{BaseEvent: events.BaseEvent{
		AggregateID: "proj-1",
		EventType:   "broken",
		Timestamp:   time.Now(),
	}}
	batch := []events.DomainEvent{bad, graphChangedEvent(t)}

	require.NoError(t, publisher.PublishBatch(context.Background(), batch))

	require.Len(t, fake.inputs, 1)
	require.Len(t, fake.inputs[0].Entries, 1)
	assert.Equal(t, events.GraphChangedType, aws.ToString(fake.inputs[0].Entries[0].DetailType))
}

// When an event is skipped during marshalling, failure entries from
// EventBridge must still be matched to the event that was actually sent
// at that index.
func TestPublisher_FailureLogNamesTheSentEvent(t *testing.T) {
	fake := &fakePutEvents{
		output: &awseventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{
					ErrorCode:    aws.String("ThrottlingException"),
					ErrorMessage: aws.String("rate exceeded"),
				},
			},
		},
	}
	core, logs := observer.New(zap.ErrorLevel)
	publisher := NewPublisher(fake, "graph-events", zap.New(core))

	bad := brokenEvent{BaseEvent: events.BaseEvent{
		AggregateID: "proj-1",
		EventType:   "broken",
		Timestamp:   time.Now(),
	}}
	batch := []events.DomainEvent{bad, graphChangedEvent(t)}

	err := publisher.PublishBatch(context.Background(), batch)
	require.Error(t, err)

	entries := logs.FilterMessage("Failed to publish event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, events.GraphChangedType, entries[0].ContextMap()["eventType"])
}

func TestPublisher_EmptyBatchIsNoop(t *testing.T) {
	fake := &fakePutEvents{}
	publisher := NewPublisher(fake, "graph-events", zap.NewNop())

	require.NoError(t, publisher.PublishBatch(context.Background(), nil))
	assert.Empty(t, fake.inputs)
}
