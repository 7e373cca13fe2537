// Package media relays uploaded images to object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"plantify/apperr"

	"github.com/google/uuid"
)

// ErrUploadFailed wraps every storage-side upload failure
var ErrUploadFailed = errors.New("image upload failed")

// Asset is a stored image
type Asset struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// Uploader moves a local temp file into storage under folder. The local
// file is removed whether or not the upload succeeds.
type Uploader interface {
	Upload(ctx context.Context, localPath, folder string) (*Asset, error)
	Delete(ctx context.Context, id string) error
}

func objectKey(folder, localPath string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = "uploads"
	}
	return folder + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(localPath))
}

func uploadFailed(err error) error {
	return apperr.Wrap(apperr.KindUpstream, "Image upload failed", fmt.Errorf("%w: %v", ErrUploadFailed, err))
}
