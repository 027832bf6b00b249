package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"paperPatent/api/models"
)

const (
	EventCreated = "created"
	EventStatus  = "status"
)

// TaskMessage is one lifecycle record on the tasks topic, keyed by task id so
// a task's records stay ordered within a partition.
type TaskMessage struct {
	TaskID   string    `json:"task_id"`
	TraceID  string    `json:"trace_id,omitempty"`
	Event    string    `json:"event"`
	Status   string    `json:"status"`
	Filename string    `json:"filename,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Producer publishes task lifecycle changes. It satisfies repository.Journal.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return newProducer(p, topic), nil
}

func newProducer(p sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: p, topic: topic}
}

func (p *Producer) SendTaskMessage(ctx context.Context, message *TaskMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(message.TaskID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *Producer) TaskCreated(ctx context.Context, task models.Task) error {
	return p.SendTaskMessage(ctx, &TaskMessage{
		TaskID:   task.ID,
		TraceID:  task.Inputs.TraceID,
		Event:    EventCreated,
		Status:   string(task.Status),
		Filename: task.Inputs.OriginalFilename,
		At:       task.CreatedAt.UTC(),
	})
}

func (p *Producer) StatusChanged(ctx context.Context, taskID string, status models.TaskStatus, errMsg string) error {
	return p.SendTaskMessage(ctx, &TaskMessage{
		TaskID: taskID,
		Event:  EventStatus,
		Status: string(status),
		Error:  errMsg,
		At:     time.Now().UTC(),
	})
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
