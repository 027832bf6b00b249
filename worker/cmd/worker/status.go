package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"paperPatent/api/cache"
	"paperPatent/api/database"
	"paperPatent/api/models"
)

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Look up a task in the Redis status mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = os.Getenv("REDIS_ADDR")
			}
			if addr == "" {
				return errors.New("no Redis address configured")
			}
			return showStatus(cmd.Context(), addr, args[0])
		},
	}

	cmd.Flags().StringVar(&addr, "redis", "", "Redis address (default $REDIS_ADDR)")
	return cmd
}

func showStatus(ctx context.Context, addr, taskID string) error {
	client, err := database.ConnectCache(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	entry, err := cache.NewStatusCache(client).Get(ctx, taskID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("task %s is not in the status mirror", taskID)
	}
	if err != nil {
		return err
	}

	c := plainColor
	switch entry.Status {
	case models.StatusCompleted:
		c = successColor
	case models.StatusFailed:
		c = failColor
	}
	c.Fprintf(os.Stdout, "%s  %s\n", taskID, entry.Status)
	if entry.Filename != "" {
		fmt.Fprintf(os.Stdout, "  file     %s\n", entry.Filename)
	}
	if entry.Error != "" {
		fmt.Fprintf(os.Stdout, "  error    %s\n", entry.Error)
	}
	if !entry.UpdatedAt.IsZero() {
		fmt.Fprintf(os.Stdout, "  updated  %s\n", entry.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}
