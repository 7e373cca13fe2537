package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"plantify/apperr"
	"plantify/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o644))
	return path
}

type part struct {
	field, filename, contentType string
	body                         []byte
}

func multipartRequest(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		h.Set("Content-Type", p.contentType)
		fw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = fw.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("name", "Neem Oil"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/products", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestStubUploader(t *testing.T) {
	u := NewStubUploader(nil)
	path := tempImage(t, "leaf.PNG")

	asset, err := u.Upload(context.Background(), path, "products")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(asset.URL, "https://storage.example.com/products/"))
	assert.True(t, strings.HasSuffix(asset.ID, ".png"))
	assert.NoFileExists(t, path)

	t.Run("missing file", func(t *testing.T) {
		_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.png"), "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUploadFailed))
		assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	})

	assert.NoError(t, u.Delete(context.Background(), asset.ID))
	assert.Error(t, u.Delete(context.Background(), ""))
}

func TestObjectKeyDefaultsFolder(t *testing.T) {
	key := objectKey("", "/tmp/a.jpg")
	assert.True(t, strings.HasPrefix(key, "uploads/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	assert.True(t, strings.HasPrefix(objectKey("/profiles/", "x.png"), "profiles/"))
}

func TestSaveImages(t *testing.T) {
	dir := t.TempDir()

	t.Run("saves images", func(t *testing.T) {
		req := multipartRequest(t,
			part{"images", "a.png", "image/png", []byte("one")},
			part{"images", "b.jpg", "image/jpeg", []byte("two")},
		)
		paths, err := SaveImages(httptest.NewRecorder(), req, "images", dir, MaxProductImages)
		require.NoError(t, err)
		require.Len(t, paths, 2)
		for _, p := range paths {
			assert.FileExists(t, p)
		}
		RemoveAll(paths)
		for _, p := range paths {
			assert.NoFileExists(t, p)
		}
	})

	t.Run("rejects non images", func(t *testing.T) {
		req := multipartRequest(t,
			part{"images", "a.png", "image/png", []byte("one")},
			part{"images", "notes.txt", "text/plain", []byte("two")},
		)
		_, err := SaveImages(httptest.NewRecorder(), req, "images", dir, MaxProductImages)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	})

	t.Run("rejects oversized images", func(t *testing.T) {
		req := multipartRequest(t, part{"images", "big.png", "image/png", bytes.Repeat([]byte("x"), MaxImageSize+1)})
		_, err := SaveImages(httptest.NewRecorder(), req, "images", dir, MaxProductImages)
		require.Error(t, err)
		assert.Equal(t, "Image must be at most 2MB", apperr.MessageOf(err))
	})

	t.Run("too many files", func(t *testing.T) {
		var parts []part
		for i := 0; i < MaxProductImages+1; i++ {
			parts = append(parts, part{"images", "a.png", "image/png", []byte("x")})
		}
		_, err := SaveImages(httptest.NewRecorder(), multipartRequest(t, parts...), "images", dir, MaxProductImages)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("body over the cap", func(t *testing.T) {
		req := multipartRequest(t, part{"profileImage", "huge.png", "image/png", bytes.Repeat([]byte("x"), 4<<20)})
		_, err := SaveImage(httptest.NewRecorder(), req, "profileImage", dir)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Equal(t, "Upload exceeds 3MB", apperr.MessageOf(err))

		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	})

	t.Run("no file is fine", func(t *testing.T) {
		path, err := SaveImage(httptest.NewRecorder(), multipartRequest(t), "profileImage", dir)
		require.NoError(t, err)
		assert.Empty(t, path)
	})
}

func TestS3UploaderUpload(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotType  string
		gotBody  []byte
		gotVerbs []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotVerbs = append(gotVerbs, r.Method)
		if r.Method == http.MethodPut {
			gotPath = r.URL.Path
			gotType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := NewS3Uploader(config.StorageConfig{
		Endpoint:     srv.URL,
		Region:       "us-east-1",
		Bucket:       "plantify",
		AccessKey:    "test",
		SecretKey:    "test-secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	path := tempImage(t, "tomato.png")
	asset, err := u.Upload(context.Background(), path, "products")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/plantify/"+asset.ID, gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Contains(t, string(gotBody), "PNG fake")
	assert.Equal(t, srv.URL+"/plantify/"+asset.ID, asset.URL)
	assert.NoFileExists(t, path)
	assert.Contains(t, gotVerbs, http.MethodPut)
}

func TestNewS3UploaderRequiresCredentials(t *testing.T) {
	_, err := NewS3Uploader(config.StorageConfig{Bucket: "b"})
	assert.Error(t, err)
	_, err = NewS3Uploader(config.StorageConfig{AccessKey: "a", SecretKey: "s"})
	assert.Error(t, err)
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.plantify.in",
		publicBaseURL(config.StorageConfig{PublicBaseURL: "https://cdn.plantify.in/", Bucket: "b"}, "", "ap-south-1"))
	assert.Equal(t, "https://b.s3.ap-south-1.amazonaws.com",
		publicBaseURL(config.StorageConfig{Bucket: "b"}, "", "ap-south-1"))
}
