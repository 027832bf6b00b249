package validation

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeText FileType = "text"
)

var magicBytes = map[FileType][]byte{
	FileTypePDF:  {0x25, 0x50, 0x44, 0x46}, // %PDF
	FileTypeDOCX: {0x50, 0x4B, 0x03, 0x04}, // zip local header
}

var sampleExtensions = map[string]FileType{
	".txt":  FileTypeText,
	".md":   FileTypeText,
	".docx": FileTypeDOCX,
}

// DetectFileType sniffs the first bytes of file and rewinds it.
func DetectFileType(file io.ReadSeeker) (FileType, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrEmptyFile
	}

	for fileType, signature := range magicBytes {
		if bytes.HasPrefix(buffer[:n], signature) {
			return fileType, nil
		}
	}

	if !bytes.Contains(buffer[:n], []byte{0}) {
		return FileTypeText, nil
	}
	return "", ErrInvalidFileType
}

// ValidateSource accepts only PDF content under a .pdf name.
func ValidateSource(filename string, size, maxSize int64, file io.ReadSeeker) error {
	if err := checkSize(size, maxSize); err != nil {
		return err
	}
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}

	fileType, err := DetectFileType(file)
	if err != nil {
		return err
	}
	if fileType != FileTypePDF {
		return ErrExtensionMismatch
	}
	return nil
}

// ValidateSample accepts .txt, .md and .docx style samples.
func ValidateSample(filename string, size, maxSize int64, file io.ReadSeeker) error {
	if err := checkSize(size, maxSize); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := sampleExtensions[ext]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	got, err := DetectFileType(file)
	if err != nil {
		return err
	}
	if got != want {
		return ErrExtensionMismatch
	}
	return nil
}

func checkSize(size, maxSize int64) error {
	if size == 0 {
		return ErrEmptyFile
	}
	if maxSize > 0 && size > maxSize {
		return ErrFileTooLarge
	}
	return nil
}
