package media

import (
	"context"
	"errors"
	"os"
	"strings"

	"go.uber.org/zap"
)

// StubUploader pretends to store images; used in development when no bucket
// is configured. It still consumes the temp file.
type StubUploader struct {
	// BaseURL prefixes generated URLs
	BaseURL string
	logger  *zap.Logger
}

var _ Uploader = (*StubUploader)(nil)

func NewStubUploader(logger *zap.Logger) *StubUploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubUploader{BaseURL: "https://storage.example.com", logger: logger}
}

func (s *StubUploader) Upload(_ context.Context, localPath, folder string) (*Asset, error) {
	defer removeTemp(s.logger, localPath)

	if _, err := os.Stat(localPath); err != nil {
		return nil, uploadFailed(err)
	}
	key := objectKey(folder, localPath)
	return &Asset{URL: strings.TrimRight(s.BaseURL, "/") + "/" + key, ID: key}, nil
}

func (s *StubUploader) Delete(_ context.Context, id string) error {
	if id == "" {
		return errors.New("storage key is required")
	}
	return nil
}
