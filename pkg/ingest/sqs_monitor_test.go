package ingest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/types"
)

// fakeSQS serves canned receive batches and records deletions.
type fakeSQS struct {
	batches [][]sqstypes.Message
	calls   int
	deleted []string
}

func (f *fakeSQS) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput,
	optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs/" + *params.QueueName)}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput,
	optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.calls >= len(f.batches) {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	out := &sqs.ReceiveMessageOutput{Messages: f.batches[f.calls]}
	f.calls++
	return out, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput,
	optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func notificationBody(t *testing.T, keysAndSizes map[string]int64) string {
	t.Helper()
	var note s3Notification
	for key, size := range keysAndSizes {
		var rec s3NotificationRecord
		rec.EventName = "ObjectCreated:Put"
		rec.S3.Bucket.Name = "ingest-bucket"
		rec.S3.Object.Key = key
		rec.S3.Object.Size = size
		note.Records = append(note.Records, rec)
	}
	raw, err := json.Marshal(note)
	require.NoError(t, err)
	return string(raw)
}

func newMonitorStrike() *types.Strike {
	return &types.Strike{
		ID: "strike-1",
		Configuration: types.StrikeConfiguration{
			WorkspaceID: "raw",
			Monitor:     &types.StrikeMonitorConfig{Type: "s3", SQSName: "ingest-events"},
			FilesToIngest: []types.IngestFileRule{
				{FilenameRegex: `.*\.h5`, DataTypes: []string{"science"},
					NewWorkspaceID: "processed", NewFilePath: "sorted"},
			},
		},
	}
}

// TestSQSMonitorRecordsNotifiedFiles tests that object-created
// notifications become ingest records with rule matching applied
func TestSQSMonitorRecordsNotifiedFiles(t *testing.T) {
	store := newTestStore(t)
	strike := newMonitorStrike()

	fake := &fakeSQS{batches: [][]sqstypes.Message{{
		{
			Body:          aws.String(notificationBody(t, map[string]int64{"incoming/data.h5": 100})),
			ReceiptHandle: aws.String("rh-1"),
		},
		{
			Body:          aws.String(notificationBody(t, map[string]int64{"incoming/readme.txt": 5})),
			ReceiptHandle: aws.String("rh-2"),
		},
	}}}

	m := NewSQSMonitor(store, strike)
	m.client = fake
	m.queueURL = "https://sqs/ingest-events"

	created, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, []string{"rh-1", "rh-2"}, fake.deleted)

	ingests, err := store.ListIngests(persistence.IngestFilter{StrikeIDs: []string{"strike-1"}})
	require.NoError(t, err)
	require.Len(t, ingests, 2)

	byName := make(map[string]*types.Ingest)
	for _, in := range ingests {
		byName[in.FileName] = in
	}

	matched := byName["data.h5"]
	require.NotNil(t, matched)
	assert.Equal(t, types.IngestTransferred, matched.Status)
	assert.Equal(t, "incoming/data.h5", matched.FilePath)
	assert.Equal(t, int64(100), matched.FileSize)
	assert.Equal(t, "science", matched.DataType)
	assert.Equal(t, "processed", matched.NewWorkspaceID)

	unmatched := byName["readme.txt"]
	require.NotNil(t, unmatched)
	assert.Equal(t, types.IngestDeferred, unmatched.Status)
}

// TestSQSMonitorSkipsRedelivered tests that a redelivered notification
// does not duplicate the ingest record
func TestSQSMonitorSkipsRedelivered(t *testing.T) {
	store := newTestStore(t)
	strike := newMonitorStrike()

	body := notificationBody(t, map[string]int64{"incoming/data.h5": 100})
	fake := &fakeSQS{batches: [][]sqstypes.Message{
		{{Body: aws.String(body), ReceiptHandle: aws.String("rh-1")}},
		{{Body: aws.String(body), ReceiptHandle: aws.String("rh-1b")}},
	}}

	m := NewSQSMonitor(store, strike)
	m.client = fake
	m.queueURL = "https://sqs/ingest-events"

	created, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created, "redelivery must not create a second record")
	assert.Equal(t, []string{"rh-1", "rh-1b"}, fake.deleted, "redelivery is still consumed")

	ingests, err := store.ListIngests(persistence.IngestFilter{StrikeIDs: []string{"strike-1"}})
	require.NoError(t, err)
	assert.Len(t, ingests, 1)
}

// TestSQSMonitorIgnoresOtherEvents tests that non-create events and
// unparseable bodies leave no records
func TestSQSMonitorIgnoresOtherEvents(t *testing.T) {
	store := newTestStore(t)
	strike := newMonitorStrike()

	removed := notificationBody(t, map[string]int64{"incoming/data.h5": 100})
	var note s3Notification
	require.NoError(t, json.Unmarshal([]byte(removed), &note))
	note.Records[0].EventName = "ObjectRemoved:Delete"
	raw, err := json.Marshal(note)
	require.NoError(t, err)

	fake := &fakeSQS{batches: [][]sqstypes.Message{{
		{Body: aws.String(string(raw)), ReceiptHandle: aws.String("rh-1")},
		{Body: aws.String("not json"), ReceiptHandle: aws.String("rh-2")},
	}}}

	m := NewSQSMonitor(store, strike)
	m.client = fake
	m.queueURL = "https://sqs/ingest-events"

	created, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	// The delete event is consumed; the bad body stays for redelivery
	assert.Equal(t, []string{"rh-1"}, fake.deleted)

	ingests, err := store.ListIngests(persistence.IngestFilter{StrikeIDs: []string{"strike-1"}})
	require.NoError(t, err)
	assert.Empty(t, ingests)
}

// TestSQSMonitorDecodesObjectKeys tests URL-encoded key handling
func TestSQSMonitorDecodesObjectKeys(t *testing.T) {
	store := newTestStore(t)
	strike := newMonitorStrike()

	fake := &fakeSQS{batches: [][]sqstypes.Message{{
		{
			Body:          aws.String(notificationBody(t, map[string]int64{"incoming/my+file.h5": 10})),
			ReceiptHandle: aws.String("rh-1"),
		},
	}}}

	m := NewSQSMonitor(store, strike)
	m.client = fake
	m.queueURL = "https://sqs/ingest-events"

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	ingests, err := store.ListIngests(persistence.IngestFilter{StrikeIDs: []string{"strike-1"}})
	require.NoError(t, err)
	require.Len(t, ingests, 1)
	assert.Equal(t, "my file.h5", ingests[0].FileName)
	assert.Equal(t, "incoming/my file.h5", ingests[0].FilePath)
}
