package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type Consumer struct {
	SQS      *sqs.Client
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

type Handler func(ctx context.Context, job BroadcastJob) error

// Poll runs jobs one at a time. There is deliberately no concurrent
// variant: a broadcast monopolizes the channel session for minutes, and
// the FIFO group already serializes delivery.
func (c *Consumer) Poll(ctx context.Context, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &c.QueueURL,
			MaxNumberOfMessages: c.MaxMessages,
			WaitTimeSeconds:     c.WaitTimeSeconds,
			VisibilityTimeout:   c.VisibilityTimeout,
		})
		if err != nil {
			slog.Error("sqs receive message failed", "err", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, m := range out.Messages {
			if m.Body == nil {
				continue
			}
			var job BroadcastJob
			if err := json.Unmarshal([]byte(*m.Body), &job); err != nil {
				// bad payload => delete to avoid endless redrive
				_, _ = c.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
					QueueUrl:      &c.QueueURL,
					ReceiptHandle: m.ReceiptHandle,
				})
				continue
			}

			if err := handler(ctx, job); err == nil {
				_, _ = c.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
					QueueUrl:      &c.QueueURL,
					ReceiptHandle: m.ReceiptHandle,
				})
			} else {
				// do NOT delete => SQS redrive/DLQ handles it
				slog.Error("broadcast job failed", "broadcast_id", job.BroadcastID, "err", err)
			}
		}
	}
}
