package documents

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload-document", r.URL.Path)

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		body, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "hello", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"document_id":"doc-1","filename":"notes.txt","file_size":5,"total_chunks":1,"upload_time":0.12}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	doc, err := c.Upload(context.Background(), writeTempDoc(t, "notes.txt", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.DocumentID)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, int64(5), doc.FileSize)
	assert.Equal(t, 1, doc.TotalChunks)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	c := NewClient("http://unused", nil)
	_, err := c.Upload(context.Background(), writeTempDoc(t, "image.png", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document type")
}

func TestUploadSurfacesServerDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"file too large"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Upload(context.Background(), writeTempDoc(t, "notes.md", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")
}
