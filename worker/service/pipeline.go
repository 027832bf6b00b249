package service

import (
	"go.uber.org/zap"

	"paperPatent/api/repository"
	"paperPatent/worker/config"
	"paperPatent/worker/converter"
	"paperPatent/worker/extractor"
	"paperPatent/worker/llm"
	"paperPatent/worker/render"
)

// NewPipeline assembles a Processor backed by the OpenRouter client, the
// fitz extractor with vision fallback and the docx renderer.
func NewPipeline(cfg *config.Config, store repository.Store, journal repository.Journal, logger *zap.Logger) *Processor {
	client := llm.NewClient(llm.Options{
		URL:      cfg.OpenRouterURL,
		SiteURL:  cfg.SiteURL,
		SiteName: cfg.SiteName,
		Timeout:  cfg.HTTPTimeout,
	}, logger.Named("llm"))

	conv := converter.NewConverter(logger.Named("converter"))

	ext := extractor.NewChain(
		extractor.NewFitzExtractor(logger.Named("fitz")),
		extractor.NewVisionExtractor(client, conv, cfg.VisionModel, cfg.FallbackMaxPages, cfg.FigureMaxWidth, logger.Named("vision")),
		cfg.MinExtractedChars,
		logger.Named("extractor"),
	)

	renderer := render.NewRenderer(conv, cfg.FigureMaxWidth, logger.Named("render"))

	return NewProcessor(store, journal, ext, client, renderer, cfg, logger.Named("pipeline"))
}
