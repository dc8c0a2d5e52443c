package sqsqueue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"wacast/internal/observability"
)

// broadcastGroupID keys every job to the same FIFO group. The channel
// session is a single exclusively-owned resource, so broadcasts must run
// one at a time; a shared group id makes SQS enforce that ordering.
const broadcastGroupID = "broadcast"

type Producer struct {
	SQS      *sqs.Client
	QueueURL string
}

// BroadcastJob carries only the id; the worker reloads everything else from
// the store so the queue payload never goes stale.
type BroadcastJob struct {
	BroadcastID string `json:"broadcastId"`
}

func (p *Producer) EnqueueBroadcast(ctx context.Context, broadcastID string) error {
	body, err := json.Marshal(BroadcastJob{BroadcastID: broadcastID})
	if err != nil {
		return err
	}

	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               &p.QueueURL,
		MessageBody:            str(string(body)),
		MessageGroupId:         str(broadcastGroupID),
		MessageDeduplicationId: str(broadcastID),
	})
	if err != nil {
		observability.Enqueues.WithLabelValues("error").Inc()
		return err
	}
	observability.Enqueues.WithLabelValues("ok").Inc()
	return nil
}

func str(s string) *string { return &s }
