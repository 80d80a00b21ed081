// Package queue carries followup dispatch jobs over SQS. The sweep
// publishes one job per due followup id and consumers hand each job to the
// dispatcher. Retry, backoff and dead-lettering belong to the queue's
// redrive policy.
package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// API is the subset of *sqs.Client used here.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// DispatchJob asks a consumer to process one followup.
type DispatchJob struct {
	FollowupID string    `json:"followup_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	SweepRunID string    `json:"sweep_run_id,omitempty"`
}
