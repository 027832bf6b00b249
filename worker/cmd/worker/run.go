package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paperPatent/api/models"
	"paperPatent/api/repository"
	"paperPatent/api/stream"
	"paperPatent/worker/service"
)

var errTaskFailed = errors.New("task failed")

type runOptions struct {
	apiKey    string
	samples   map[models.SampleKind]*string
	noBars    bool
	outputDir string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{samples: map[models.SampleKind]*string{
		models.SampleSpecification: new(string),
		models.SampleClaims:        new(string),
		models.SampleAbstract:      new(string),
	}}

	cmd := &cobra.Command{
		Use:   "run <paper.pdf>",
		Short: "Generate a patent package from a PDF in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "OpenRouter API key (default $OPENROUTER_API_KEY)")
	cmd.Flags().StringVar(opts.samples[models.SampleSpecification], "spec-sample", "", "specification style sample (.txt, .md, .docx)")
	cmd.Flags().StringVar(opts.samples[models.SampleClaims], "claims-sample", "", "claims style sample")
	cmd.Flags().StringVar(opts.samples[models.SampleAbstract], "abstract-sample", "", "abstract style sample")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "output root (default $OUTPUT_DIR)")
	cmd.Flags().BoolVar(&opts.noBars, "no-progress", false, "disable progress bars")

	return cmd
}

func runTask(parent context.Context, pdf string, opts *runOptions) error {
	logger := newLogger()
	defer logger.Sync()

	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	apiKey := opts.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}

	source, err := filepath.Abs(pdf)
	if err != nil {
		return err
	}
	if _, err := os.Stat(source); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	samples := map[models.SampleKind]string{}
	for kind, path := range opts.samples {
		if *path != "" {
			samples[kind] = *path
		}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := repository.NewMemoryStore()
	proc := service.NewPipeline(cfg, store, repository.NewJournals(logger), logger)

	task, err := store.Create(ctx, models.Inputs{
		SourcePath:       source,
		OriginalFilename: filepath.Base(source),
		Samples:          samples,
		APIKey:           apiKey,
		TraceID:          uuid.New().String(),
	})
	if err != nil {
		return err
	}

	frames, err := stream.NewBroadcaster(store, 0, logger).Attach(ctx, task.ID)
	if err != nil {
		return err
	}

	processed := make(chan struct{})
	go func() {
		defer close(processed)
		if err := proc.Process(ctx, task.ID); err != nil {
			logger.Debug("Process returned", zap.Error(err))
		}
	}()

	out := newFeed(os.Stdout, verbose, !opts.noBars)
	fmt.Fprintf(os.Stdout, "Task %s: %s\n", task.ID, task.Inputs.OriginalFilename)

	var done *models.DoneEvent
	for frame := range frames {
		if frame.Heartbeat {
			continue
		}
		if d, last := out.handle(frame.Event); last {
			done = d
		}
	}
	<-processed

	if done == nil {
		return ctx.Err()
	}
	if done.Status == models.StatusFailed {
		return fmt.Errorf("%w: %s", errTaskFailed, done.Error)
	}
	return nil
}
