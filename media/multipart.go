package media

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"plantify/apperr"
)

const (
	MaxImageSize     = 2 << 20
	MaxProductImages = 5
)

// SaveImages copies the images posted under field into dir and returns the
// temp paths. Only image/* parts up to MaxImageSize are accepted and the
// whole body is capped at maxFiles images plus 1MB of form fields. On error
// every file written so far is removed.
func SaveImages(w http.ResponseWriter, r *http.Request, field, dir string, maxFiles int) ([]string, error) {
	limit := int64(maxFiles)*MaxImageSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Wrap(apperr.KindValidation, fmt.Sprintf("Upload exceeds %dMB", limit>>20), err)
		}
		return nil, apperr.Wrap(apperr.KindValidation, "Invalid multipart form", err)
	}
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) > maxFiles {
		return nil, apperr.Validation(fmt.Sprintf("At most %d images are allowed", maxFiles))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	paths := make([]string, 0, len(headers))
	for _, h := range headers {
		path, err := saveImage(h, dir)
		if err != nil {
			RemoveAll(paths)
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// SaveImage is SaveImages for a single optional file
func SaveImage(w http.ResponseWriter, r *http.Request, field, dir string) (string, error) {
	paths, err := SaveImages(w, r, field, dir, 1)
	if err != nil || len(paths) == 0 {
		return "", err
	}
	return paths[0], nil
}

func saveImage(h *multipart.FileHeader, dir string) (string, error) {
	if !strings.HasPrefix(h.Header.Get("Content-Type"), "image/") {
		return "", apperr.Validation("Only image files allowed")
	}
	if h.Size > MaxImageSize {
		return "", apperr.Validation("Image must be at most 2MB")
	}

	src, err := h.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(filepath.Ext(h.Filename)))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, io.LimitReader(src, MaxImageSize+1)); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	return dst.Name(), nil
}

// RemoveAll deletes temp files that were never handed to an Uploader
func RemoveAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
