package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const publishTimeout = 5 * time.Second

type Publisher struct {
	client   API
	queueURL string
}

func NewPublisher(client API, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// Publish enqueues a dispatch job. Unlike fire-and-forget event tracking, a
// lost job means a missed followup, so the send is synchronous and its
// error is returned.
func (p *Publisher) Publish(ctx context.Context, job DispatchJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal dispatch job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"followup_id": {DataType: aws.String("String"), StringValue: aws.String(job.FollowupID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish followup %s: %w", job.FollowupID, err)
	}
	return nil
}
