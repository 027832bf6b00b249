package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler func(ctx context.Context, msg *TaskMessage) error

// TaskMessage mirrors the lifecycle record published by the API server.
type TaskMessage struct {
	TaskID   string    `json:"task_id"`
	TraceID  string    `json:"trace_id,omitempty"`
	Event    string    `json:"event"`
	Status   string    `json:"status"`
	Filename string    `json:"filename,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

var errIncomplete = errors.New("lifecycle message without task id or status")

func decodeMessage(value []byte) (*TaskMessage, error) {
	var msg TaskMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return nil, err
	}
	if msg.TaskID == "" || msg.Status == "" {
		return nil, errIncomplete
	}
	return &msg, nil
}

type Consumer struct {
	consumer sarama.ConsumerGroup
}

func NewConsumer(brokers []string, groupID string, fromOldest bool) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if fromOldest {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	c, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{consumer: c}, nil
}

type consumerHandler struct {
	fn      MessageHandler
	ctx     context.Context
	invalid func(value []byte, err error)
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		taskMsg, err := decodeMessage(msg.Value)
		if err != nil {
			if h.invalid != nil {
				h.invalid(msg.Value, err)
			}
			session.MarkMessage(msg, "")
			continue
		}
		if err := h.fn(h.ctx, taskMsg); err != nil {
			return err
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// Consume blocks until ctx is cancelled or the handler fails. The group
// session is re-joined after every rebalance.
func (c *Consumer) Consume(ctx context.Context, topic string, handler MessageHandler, invalid func([]byte, error)) error {
	h := &consumerHandler{fn: handler, ctx: ctx, invalid: invalid}
	for {
		if err := c.consumer.Consume(ctx, []string{topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
