package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"github.com/harborline/stevedore/pkg/awsutil"
	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/types"
)

const (
	// SQS long-poll maximum.
	monitorWaitSeconds = 20
	monitorMaxMessages = 10
)

// sqsAPI is the slice of the SQS client the monitor uses.
type sqsAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput,
		optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput,
		optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput,
		optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// s3Notification is the S3 event notification envelope delivered to the
// queue by the bucket.
type s3Notification struct {
	Records []s3NotificationRecord `json:"Records"`
}

type s3NotificationRecord struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"object"`
	} `json:"s3"`
}

// SQSMonitor feeds a strike process from S3 object-created
// notifications on an SQS queue. Files are recorded the same way the
// scan recorder records them: rule matches start TRANSFERRED with the
// rule's data type tags, the rest are DEFERRED. A file already
// recorded for the strike is skipped, so redelivered notifications are
// harmless.
type SQSMonitor struct {
	store  persistence.Store
	strike *types.Strike

	client   sqsAPI
	queueURL string

	stopCh chan struct{}
	logger zerolog.Logger
}

// NewSQSMonitor returns a monitor for the given strike. Call
// LoadConfiguration before Run.
func NewSQSMonitor(store persistence.Store, strike *types.Strike) *SQSMonitor {
	return &SQSMonitor{
		store:  store,
		strike: strike,
		stopCh: make(chan struct{}),
		logger: log.WithComponent("strike").With().Str("strike_id", strike.ID).Logger(),
	}
}

// LoadConfiguration builds the SQS client from the strike's monitor
// configuration and resolves the queue URL by name.
func (m *SQSMonitor) LoadConfiguration(ctx context.Context) error {
	mon := m.strike.Configuration.Monitor
	if mon == nil || mon.Type != "s3" {
		return fmt.Errorf("%w: strike has no s3 monitor", ErrInvalidConfiguration)
	}

	cfg, err := awsutil.LoadConfig(ctx, mon.Region, awsutil.Credentials{
		AccessKeyID:     mon.AccessKeyID,
		SecretAccessKey: mon.SecretAccessKey,
	})
	if err != nil {
		return fmt.Errorf("failed to load aws config: %w", err)
	}
	m.client = awsutil.NewSQSClient(cfg)

	out, err := m.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(mon.SQSName),
	})
	if err != nil {
		return fmt.Errorf("failed to resolve queue %q: %w", mon.SQSName, err)
	}
	m.queueURL = aws.ToString(out.QueueUrl)
	return nil
}

// Run polls the queue until the context ends or Stop is called.
func (m *SQSMonitor) Run(ctx context.Context) error {
	m.logger.Info().Str("queue_url", m.queueURL).Msg("Monitoring notification queue")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return nil
		default:
		}

		if _, err := m.Poll(ctx); err != nil {
			m.logger.Error().Err(err).Msg("Failed to poll notification queue")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.stopCh:
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Stop asks a running monitor to end after the current poll.
func (m *SQSMonitor) Stop() {
	close(m.stopCh)
}

// Poll performs one receive cycle: long-poll the queue, record the
// files from each notification, and delete the messages that were
// processed. A message whose notification cannot be processed is left
// on the queue for redelivery. Returns the number of ingests created.
func (m *SQSMonitor) Poll(ctx context.Context) (int, error) {
	out, err := m.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(m.queueURL),
		MaxNumberOfMessages: monitorMaxMessages,
		WaitTimeSeconds:     monitorWaitSeconds,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to receive messages: %w", err)
	}

	created := 0
	for _, msg := range out.Messages {
		n, err := m.processNotification(aws.ToString(msg.Body))
		if err != nil {
			m.logger.Warn().Err(err).Msg("Failed to process notification")
			continue
		}
		created += n

		if _, err := m.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(m.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			return created, fmt.Errorf("failed to delete message: %w", err)
		}
	}
	return created, nil
}

func (m *SQSMonitor) processNotification(body string) (int, error) {
	var note s3Notification
	if err := json.Unmarshal([]byte(body), &note); err != nil {
		return 0, fmt.Errorf("failed to parse notification: %w", err)
	}

	created := 0
	now := time.Now().UTC()
	for _, rec := range note.Records {
		if !strings.HasPrefix(rec.EventName, "ObjectCreated") {
			continue
		}

		// Object keys arrive URL-encoded in notifications.
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			key = rec.S3.Object.Key
		}
		fileName := path.Base(key)

		existing, err := m.store.ListIngests(persistence.IngestFilter{
			StrikeIDs: []string{m.strike.ID},
			FileName:  fileName,
		})
		if err != nil {
			return created, err
		}
		if len(existing) > 0 {
			m.logger.Debug().Str("file_name", fileName).Msg("Skipping already recorded file")
			continue
		}

		in := &types.Ingest{
			FileName:    fileName,
			StrikeID:    m.strike.ID,
			FilePath:    key,
			FileSize:    rec.S3.Object.Size,
			WorkspaceID: m.strike.Configuration.WorkspaceID,

			// The object is already in the bucket workspace; there is
			// no transfer phase.
			Status:        types.IngestTransferred,
			TransferEnded: &now,
		}
		if rule := MatchFileRule(m.strike.Configuration.FilesToIngest, fileName); rule != nil {
			for _, tag := range rule.DataTypes {
				if err := AddDataTypeTag(in, tag); err != nil {
					return created, err
				}
			}
			in.NewWorkspaceID = rule.NewWorkspaceID
			in.NewFilePath = rule.NewFilePath
		} else {
			in.Status = types.IngestDeferred
		}

		if err := m.store.CreateIngest(in); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
