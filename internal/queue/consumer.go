package queue

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/contact-app/followup/internal/service/followup"
)

// Processor handles one dispatch job.
type Processor interface {
	Process(ctx context.Context, id string) (followup.Outcome, error)
}

// ConsumerConfig tunes long polling.
type ConsumerConfig struct {
	MaxMessages  int32
	WaitSeconds  int32
	ErrorBackoff time.Duration
}

func (c *ConsumerConfig) applyDefaults() {
	if c.MaxMessages <= 0 || c.MaxMessages > 10 {
		c.MaxMessages = 10
	}
	if c.WaitSeconds <= 0 || c.WaitSeconds > 20 {
		c.WaitSeconds = 20
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
}

// Consumer long-polls the dispatch queue. A message is deleted once the
// followup was sent, skipped or cancelled; on error it is left in place so
// the visibility timeout brings it back.
type Consumer struct {
	client    API
	queueURL  string
	processor Processor
	cfg       ConsumerConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConsumer(client API, queueURL string, processor Processor, cfg ConsumerConfig) *Consumer {
	cfg.applyDefaults()
	return &Consumer{
		client:    client,
		queueURL:  queueURL,
		processor: processor,
		cfg:       cfg,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true

	log.Printf("[Queue] dispatch consumer started (queue=%s)", c.queueURL)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(ctx)
	}()
}

// Stop cancels polling and waits for the in-flight batch to finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
	log.Printf("[Queue] dispatch consumer stopped")
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := c.ReceiveOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Queue] receive error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.ErrorBackoff):
			}
			continue
		}
		if n > 0 {
			log.Printf("[Queue] handled %d message(s)", n)
		}
	}
}

// ReceiveOnce receives and handles a single batch. It returns the number of
// messages received.
func (c *Consumer) ReceiveOnce(ctx context.Context) (int, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: c.cfg.MaxMessages,
		WaitTimeSeconds:     c.cfg.WaitSeconds,
	})
	if err != nil {
		return 0, err
	}
	for _, msg := range out.Messages {
		c.handle(ctx, msg)
	}
	return len(out.Messages), nil
}

func (c *Consumer) handle(ctx context.Context, msg types.Message) {
	var job DispatchJob
	if msg.Body == nil || json.Unmarshal([]byte(*msg.Body), &job) != nil || job.FollowupID == "" {
		log.Printf("[Queue] dropping malformed message %s", aws.ToString(msg.MessageId))
		c.delete(ctx, msg.ReceiptHandle)
		return
	}

	outcome, err := c.processor.Process(ctx, job.FollowupID)
	if err != nil {
		log.Printf("[Queue] followup %s: %s: %v (left for redelivery)", job.FollowupID, outcome, err)
		return
	}
	c.delete(ctx, msg.ReceiptHandle)
}

func (c *Consumer) delete(ctx context.Context, handle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		log.Printf("[Queue] delete message: %v", err)
	}
}
