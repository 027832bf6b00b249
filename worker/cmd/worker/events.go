package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paperPatent/worker/kafka"
)

func newEventsCmd() *cobra.Command {
	var fromBeginning bool
	var brokers, topic, group string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print task lifecycle records from Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			if brokers == "" {
				brokers = cfg.KafkaBrokers
			}
			if topic == "" {
				topic = cfg.KafkaTopic
			}
			if group == "" {
				group = cfg.KafkaGroupID
			}
			return tailEvents(cmd.Context(), splitBrokers(brokers), topic, group, fromBeginning)
		},
	}

	cmd.Flags().StringVar(&brokers, "brokers", "", "comma separated brokers (default $KAFKA_BROKERS)")
	cmd.Flags().StringVar(&topic, "topic", "", "lifecycle topic (default $KAFKA_TOPIC)")
	cmd.Flags().StringVar(&group, "group", "", "consumer group (default $KAFKA_GROUP_ID)")
	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "start from the oldest retained record")

	return cmd
}

func splitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func tailEvents(parent context.Context, brokers []string, topic, group string, fromBeginning bool) error {
	if len(brokers) == 0 {
		return errors.New("no Kafka brokers configured")
	}

	logger := newLogger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer, err := kafka.NewConsumer(brokers, group, fromBeginning)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	defer consumer.Close()

	logger.Info("Consuming lifecycle records", zap.Strings("brokers", brokers), zap.String("topic", topic))

	return consumer.Consume(ctx, topic,
		func(_ context.Context, msg *kafka.TaskMessage) error {
			printLifecycle(os.Stdout, msg)
			return nil
		},
		func(value []byte, err error) {
			logger.Warn("Skipping malformed record", zap.ByteString("value", value), zap.Error(err))
		},
	)
}

func printLifecycle(w io.Writer, msg *kafka.TaskMessage) {
	c := plainColor
	switch msg.Status {
	case "completed":
		c = successColor
	case "failed":
		c = failColor
	case "processing":
		c = busyColor
	}

	line := fmt.Sprintf("%s  %s  %-8s %-10s", msg.At.Local().Format(time.DateTime), msg.TaskID, msg.Event, msg.Status)
	if msg.Filename != "" {
		line += "  " + msg.Filename
	}
	if msg.Error != "" {
		line += "  " + msg.Error
	}
	c.Fprintln(w, line)
}
