package converter

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Converter normalises raster images: figures coming back from the image
// model and page renders going out to the vision model.
type Converter struct {
	logger *zap.Logger
}

func NewConverter(logger *zap.Logger) *Converter {
	return &Converter{logger: logger}
}

// SaveFigure decodes model output, shrinks it to maxWidth when wider and
// writes it as PNG. maxWidth <= 0 keeps the original size.
func (c *Converter) SaveFigure(data []byte, outputPath string, maxWidth int) error {
	c.logger.Debug("Normalising figure",
		zap.String("output", outputPath),
		zap.Int("bytes", len(data)),
	)

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		c.logger.Warn("Figure bytes are not a decodable image",
			zap.String("output", outputPath),
			zap.Error(err),
		)
		return fmt.Errorf("failed to decode image: %w", err)
	}

	processed := fit(src, maxWidth)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := imaging.Save(processed, outputPath); err != nil {
		c.logger.Error("Failed to save PNG",
			zap.String("path", outputPath),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save PNG: %w", err)
	}

	c.logger.Info("Figure saved",
		zap.String("output", outputPath),
		zap.Int("width", processed.Bounds().Dx()),
		zap.Int("height", processed.Bounds().Dy()),
	)
	return nil
}

// PageJPEG downsizes a rendered page and encodes it as JPEG.
func (c *Converter) PageJPEG(page image.Image, maxWidth int) ([]byte, error) {
	processed := fit(page, maxWidth)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, processed, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func fit(src image.Image, maxWidth int) image.Image {
	if maxWidth > 0 && src.Bounds().Dx() > maxWidth {
		return imaging.Resize(src, maxWidth, 0, imaging.Lanczos)
	}
	return src
}
