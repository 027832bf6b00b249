package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"paperPatent/worker/render"
)

// ReadSample loads a style sample: paragraphs of a .docx, or a text file in
// UTF-8 or GB18030.
func ReadSample(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return render.ReadDocxText(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read sample: %w", err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	if err == nil && utf8.Valid(decoded) {
		return string(decoded), nil
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
