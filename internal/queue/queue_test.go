package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-app/followup/internal/service/followup"
)

type fakeSQS struct {
	mu      sync.Mutex
	sent    []*sqs.SendMessageInput
	inbox   []types.Message
	deleted []string
	sendErr error
	recvErr error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	msgs := f.inbox
	f.inbox = nil
	return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type stubProcessor struct {
	mu       sync.Mutex
	seen     []string
	outcomes map[string]followup.Outcome
	errs     map[string]error
}

func (s *stubProcessor) Process(_ context.Context, id string) (followup.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, id)
	return s.outcomes[id], s.errs[id]
}

func message(handle, body string) types.Message {
	return types.Message{
		MessageId:     aws.String("id-" + handle),
		ReceiptHandle: aws.String(handle),
		Body:          aws.String(body),
	}
}

func jobBody(t *testing.T, id string) string {
	t.Helper()
	b, err := json.Marshal(DispatchJob{FollowupID: id, EnqueuedAt: time.Now().UTC()})
	require.NoError(t, err)
	return string(b)
}

func TestPublisher_Publish(t *testing.T) {
	sqsc := &fakeSQS{}
	p := NewPublisher(sqsc, "https://sqs.local/q")

	require.NoError(t, p.Publish(context.Background(), DispatchJob{FollowupID: "f-1"}))
	require.Len(t, sqsc.sent, 1)
	assert.Equal(t, "https://sqs.local/q", aws.ToString(sqsc.sent[0].QueueUrl))

	var job DispatchJob
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(sqsc.sent[0].MessageBody)), &job))
	assert.Equal(t, "f-1", job.FollowupID)
	assert.Equal(t, "f-1", aws.ToString(sqsc.sent[0].MessageAttributes["followup_id"].StringValue))
}

func TestPublisher_ReturnsSendError(t *testing.T) {
	sqsc := &fakeSQS{sendErr: errors.New("throttled")}
	err := NewPublisher(sqsc, "q").Publish(context.Background(), DispatchJob{FollowupID: "f-1"})
	assert.ErrorContains(t, err, "throttled")
}

func TestConsumer_DeletesOnSuccessAndSkip(t *testing.T) {
	sqsc := &fakeSQS{inbox: []types.Message{
		message("h1", jobBody(t, "f-1")),
		message("h2", jobBody(t, "f-2")),
		message("h3", jobBody(t, "f-3")),
	}}
	proc := &stubProcessor{
		outcomes: map[string]followup.Outcome{
			"f-1": followup.OutcomeSent,
			"f-2": followup.OutcomeSkipped,
			"f-3": followup.OutcomeFailed,
		},
		errs: map[string]error{"f-3": followup.ErrTransportFailure},
	}
	c := NewConsumer(sqsc, "q", proc, ConsumerConfig{})

	n, err := c.ReceiveOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"f-1", "f-2", "f-3"}, proc.seen)
	assert.Equal(t, []string{"h1", "h2"}, sqsc.deleted, "failed job stays for redelivery")
}

func TestConsumer_DropsMalformed(t *testing.T) {
	sqsc := &fakeSQS{inbox: []types.Message{
		message("bad", "{not json"),
		message("empty", `{"followup_id":""}`),
	}}
	proc := &stubProcessor{}
	c := NewConsumer(sqsc, "q", proc, ConsumerConfig{})

	_, err := c.ReceiveOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, proc.seen)
	assert.Equal(t, []string{"bad", "empty"}, sqsc.deleted)
}

func TestConsumer_StartStop(t *testing.T) {
	sqsc := &fakeSQS{inbox: []types.Message{message("h1", jobBody(t, "f-1"))}}
	proc := &stubProcessor{outcomes: map[string]followup.Outcome{"f-1": followup.OutcomeSent}}
	c := NewConsumer(sqsc, "q", proc, ConsumerConfig{ErrorBackoff: time.Millisecond})

	c.Start(context.Background())
	require.Eventually(t, func() bool {
		sqsc.mu.Lock()
		defer sqsc.mu.Unlock()
		return len(sqsc.deleted) == 1
	}, time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestConsumerConfigDefaults(t *testing.T) {
	cfg := ConsumerConfig{MaxMessages: 50}
	cfg.applyDefaults()
	assert.EqualValues(t, 10, cfg.MaxMessages)
	assert.EqualValues(t, 20, cfg.WaitSeconds)
	assert.Equal(t, 5*time.Second, cfg.ErrorBackoff)
}
