package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cafeteria/ordering-system/shared/events"
	"github.com/pkg/errors"
)

// Metadata keys carrying SQS delivery details alongside the event.
const (
	SQSMessageIDKey     = "sqs_message_id"
	SQSReceiptHandleKey = "sqs_receipt_handle"
)

type sqsDelivery struct {
	message types.Message
	event   *events.Event
	err     error
}

// SQSEventSubscriber consumes order events from an SQS queue and feeds
// them to a handler. Handled messages are deleted; failed ones get
// their visibility timeout extended so retries back off.
type SQSEventSubscriber struct {
	mux        sync.RWMutex
	incoming   chan *sqsDelivery
	processed  chan *sqsDelivery
	cancel     context.CancelFunc
	running    atomic.Bool
	options    *sqsSubscriberOptions

	client   *sqs.Client
	queueURL string
	handler  events.EventHandler
}

type sqsSubscriberOptions struct {
	workers                    int
	readers                    int
	cleaners                   int
	maxNumberOfMessages        int32
	waitTimeSeconds            int32
	visibilityTimeout          int32
	sleepTimeAfterEmptyReceive time.Duration
	sleepTimeAfterError        time.Duration
	receiveCountRange          int32
	visibilityTimeoutOffset    int32
	maxVisibilityTimeout       int32
}

type SQSSubscriberOption func(*sqsSubscriberOptions)

func WithWorkers(workers int) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.workers = workers
	}
}

func WithReaders(readers int) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.readers = readers
	}
}

func WithVisibilityTimeout(timeout int32) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.visibilityTimeout = timeout
	}
}

// NewSQSEventSubscriber creates a new SQS event subscriber
func NewSQSEventSubscriber(client *sqs.Client, queueURL string, handler events.EventHandler, opts ...SQSSubscriberOption) *SQSEventSubscriber {
	options := &sqsSubscriberOptions{
		workers:                    5,
		readers:                    1,
		cleaners:                   2,
		maxNumberOfMessages:        5,
		waitTimeSeconds:            15,
		visibilityTimeout:          30,
		sleepTimeAfterEmptyReceive: 10 * time.Second,
		sleepTimeAfterError:        20 * time.Second,
		receiveCountRange:          3,
		visibilityTimeoutOffset:    30,
		maxVisibilityTimeout:       900,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &SQSEventSubscriber{
		client:    client,
		queueURL:  queueURL,
		handler:   handler,
		incoming:  make(chan *sqsDelivery, 10),
		processed: make(chan *sqsDelivery, 10),
		options:   options,
	}
}

// NewSQSEventSubscriberFromEnv builds the subscriber from the default
// AWS config chain
func NewSQSEventSubscriberFromEnv(queueURL string, handler events.EventHandler, opts ...SQSSubscriberOption) (*SQSEventSubscriber, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return NewSQSEventSubscriber(sqs.NewFromConfig(cfg), queueURL, handler, opts...), nil
}

// Start launches the reader, worker and cleaner goroutines
func (s *SQSEventSubscriber) Start(ctx context.Context) error {
	if s.running.Load() {
		return nil
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.incoming = make(chan *sqsDelivery, 10)
	s.processed = make(chan *sqsDelivery, 10)

	for i := 0; i < s.options.workers; i++ {
		go s.runWorker(ctx)
	}
	for i := 0; i < s.options.readers; i++ {
		go s.runReader(ctx)
	}
	for i := 0; i < s.options.cleaners; i++ {
		go s.runCleaner(ctx)
	}

	s.running.Store(true)
	return nil
}

// Stop cancels the subscriber goroutines
func (s *SQSEventSubscriber) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.running.Store(false)
	return nil
}

func (s *SQSEventSubscriber) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery := <-s.incoming:
			if delivery == nil {
				continue
			}
			s.handle(ctx, delivery)
		}
	}
}

func (s *SQSEventSubscriber) runReader(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.read(ctx); err != nil {
				time.Sleep(s.options.sleepTimeAfterError)
			}
		}
	}
}

func (s *SQSEventSubscriber) runCleaner(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery := <-s.processed:
			if delivery == nil {
				continue
			}
			_ = s.clean(ctx, delivery)
		}
	}
}

func (s *SQSEventSubscriber) read(ctx context.Context) error {
	output, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: s.options.maxNumberOfMessages,
		WaitTimeSeconds:     s.options.waitTimeSeconds,
		VisibilityTimeout:   s.options.visibilityTimeout,
		AttributeNames: []types.QueueAttributeName{
			"ApproximateReceiveCount",
		},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return errors.Wrap(err, "failed to receive messages from SQS")
	}

	if len(output.Messages) == 0 {
		time.Sleep(s.options.sleepTimeAfterEmptyReceive)
		return nil
	}

	for _, message := range output.Messages {
		event, err := decodeSQSMessage(message)
		if err != nil {
			// Malformed body, drop it rather than poison the queue.
			s.enqueueProcessed(ctx, &sqsDelivery{message: message})
			continue
		}

		select {
		case s.incoming <- &sqsDelivery{message: message, event: event}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// decodeSQSMessage handles both raw event bodies and SNS envelope
// bodies (queue subscribed to the topic without raw delivery).
func decodeSQSMessage(message types.Message) (*events.Event, error) {
	if message.Body == nil {
		return nil, errors.New("empty message body")
	}
	body := []byte(*message.Body)

	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		body = []byte(envelope.Message)
	}

	var wire snsMessage
	if err := json.Unmarshal(body, &wire); err != nil || wire.ID == "" {
		return nil, errors.New("malformed event body")
	}

	event, err := wire.toEvent()
	if err != nil {
		return nil, err
	}

	if event.Metadata == nil {
		event.Metadata = make(events.Metadata)
	}
	if message.MessageId != nil {
		event.Metadata.Set(SQSMessageIDKey, *message.MessageId)
	}
	if message.ReceiptHandle != nil {
		event.Metadata.Set(SQSReceiptHandleKey, *message.ReceiptHandle)
	}
	for k, v := range message.MessageAttributes {
		if v.StringValue != nil {
			event.Metadata.Set(k, *v.StringValue)
		}
	}
	return event, nil
}

func (s *SQSEventSubscriber) handle(ctx context.Context, delivery *sqsDelivery) {
	s.mux.RLock()
	handler := s.handler
	s.mux.RUnlock()

	if handler == nil {
		delivery.err = errors.New("no handler configured")
	} else {
		delivery.err = handler.Handle(ctx, delivery.event)
	}

	s.enqueueProcessed(ctx, delivery)
}

func (s *SQSEventSubscriber) enqueueProcessed(ctx context.Context, delivery *sqsDelivery) {
	select {
	case s.processed <- delivery:
	case <-ctx.Done():
	}
}

func (s *SQSEventSubscriber) clean(ctx context.Context, delivery *sqsDelivery) error {
	if delivery.err != nil {
		receiveCount, err := strconv.Atoi(delivery.message.Attributes["ApproximateReceiveCount"])
		if err != nil {
			receiveCount = 1
		}

		visibilityTimeout := s.options.visibilityTimeout
		visibilityTimeout += (int32(receiveCount) / s.options.receiveCountRange) * s.options.visibilityTimeoutOffset
		if visibilityTimeout > s.options.maxVisibilityTimeout {
			visibilityTimeout = s.options.maxVisibilityTimeout
		}

		_, err = s.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          &s.queueURL,
			ReceiptHandle:     delivery.message.ReceiptHandle,
			VisibilityTimeout: visibilityTimeout,
		})
		if err != nil {
			return errors.Wrap(err, "failed to extend visibility timeout")
		}
		return nil
	}

	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &s.queueURL,
		ReceiptHandle: delivery.message.ReceiptHandle,
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete message from SQS")
	}
	return nil
}
