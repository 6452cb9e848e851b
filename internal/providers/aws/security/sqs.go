package awssecurity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqssvc "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/exposure"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// Queue attribute names read and written by this package.
const (
	attrPolicy         = "Policy"
	attrKmsMasterKeyID = "KmsMasterKeyId"
	attrSqsManagedSSE  = "SqsManagedSseEnabled"
)

// Test messages carry attrTestMessage so they can be told apart from real
// traffic on receive.
const (
	attrTestMessage    = "SecopsTest"
	testReceiveWaitSec = 5
)

// listQueues pages through ListQueues and returns every queue URL in region.
func listQueues(ctx context.Context, client sqsAPIClient, region string) ([]string, error) {
	var urls []string
	p := sqssvc.NewListQueuesPaginator(client, &sqssvc.ListQueuesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list SQS queues in %s: %w", region, err)
		}
		urls = append(urls, page.QueueUrls...)
	}
	return urls, nil
}

// describeQueue reads the policy and encryption attributes of one queue.
// When the attributes cannot be read the policy is Unavailable and the
// queue is reported unencrypted.
func describeQueue(ctx context.Context, client sqsAPIClient, url, region string, log zerolog.Logger) models.QueueDescriptor {
	d := models.QueueDescriptor{URL: url, Name: exposure.QueueNameFromURL(url), Region: region}

	out, err := client.GetQueueAttributes(ctx, &sqssvc.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
	})
	if err != nil {
		ev := log.Warn().Err(err).Str("queue", url)
		switch apiErrorCode(err) {
		case codeNonExistentQueue, codeQueueDoesNotExist:
			ev.Msg("queue does not exist")
		default:
			ev.Msg("queue attributes unavailable")
		}
		d.Policy = models.PolicyInput{State: models.PolicyUnavailable}
		return d
	}

	d.Policy = queuePolicy(out.Attributes)
	d.Encryption = queueEncryption(out.Attributes)
	return d
}

func queuePolicy(attrs map[string]string) models.PolicyInput {
	raw, ok := attrs[attrPolicy]
	if !ok {
		return models.PolicyInput{State: models.PolicyNotAttached}
	}
	return models.PolicyInput{Raw: raw, State: models.PolicyAttached}
}

func queueEncryption(attrs map[string]string) models.EncryptionState {
	managed := strings.EqualFold(attrs[attrSqsManagedSSE], "true")
	return models.NewEncryptionState(managed, attrs[attrKmsMasterKeyID])
}

type testMessageBody struct {
	Test      bool   `json:"test"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// roundTrip sends one tagged test message to q and then receives from it.
// Received test messages are deleted. Any other message received stays on
// the queue and reappears after its visibility timeout.
func roundTrip(ctx context.Context, client sqsAPIClient, q models.QueueDescriptor, log zerolog.Logger) models.MessageTestResult {
	res := models.MessageTestResult{QueueURL: q.URL, QueueName: q.Name, Region: q.Region}

	body, err := json.Marshal(testMessageBody{
		Test:      true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   "secops queue test message, safe to delete",
	})
	if err != nil {
		res.SendError = err.Error()
		return res
	}

	sent, err := client.SendMessage(ctx, &sqssvc.SendMessageInput{
		QueueUrl:    aws.String(q.URL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			attrTestMessage: {DataType: aws.String("String"), StringValue: aws.String("queue test")},
		},
	})
	if err != nil {
		res.SendError = err.Error()
		log.Warn().Err(err).Str("queue", q.URL).Msg("test message send failed")
	} else {
		res.Sent = true
		res.MessageID = aws.ToString(sent.MessageId)
	}

	got, err := client.ReceiveMessage(ctx, &sqssvc.ReceiveMessageInput{
		QueueUrl:              aws.String(q.URL),
		MaxNumberOfMessages:   1,
		WaitTimeSeconds:       testReceiveWaitSec,
		MessageAttributeNames: []string{attrTestMessage},
	})
	if err != nil {
		res.ReceiveError = err.Error()
		log.Warn().Err(err).Str("queue", q.URL).Msg("test message receive failed")
		return res
	}
	res.Received = true
	res.MessagesReceived = len(got.Messages)

	for _, m := range got.Messages {
		if _, ok := m.MessageAttributes[attrTestMessage]; !ok {
			continue
		}
		if _, err := client.DeleteMessage(ctx, &sqssvc.DeleteMessageInput{
			QueueUrl:      aws.String(q.URL),
			ReceiptHandle: m.ReceiptHandle,
		}); err != nil {
			log.Warn().Err(err).Str("queue", q.URL).Msg("test message not deleted")
		}
	}
	return res
}
