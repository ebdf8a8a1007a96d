// Package documents is the boundary client for the document-ingestion
// collaborator. The streaming core only ever consumes the resulting
// filenames as opaque display data.
package documents

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// MaxUploadSize caps uploads client-side before any bytes travel.
const MaxUploadSize = 10 << 20 // 10 MB

// allowedExtensions mirrors the producer's accepted document types.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".docx": true,
}

// Document describes an ingested document as reported by the producer.
type Document struct {
	DocumentID  string  `json:"document_id"`
	Filename    string  `json:"filename"`
	FileSize    int64   `json:"file_size"`
	TotalChunks int     `json:"total_chunks"`
	UploadTime  float64 `json:"upload_time"`
}

// Client uploads documents to the producer's ingestion endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{baseURL: baseURL, client: client}
}

// Upload sends one local file and returns the producer's document record.
// Size and extension are validated before the request is built.
func (c *Client) Upload(ctx context.Context, path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return nil, errors.Errorf("unsupported document type %q", ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat document")
	}
	if info.Size() > MaxUploadSize {
		return nil, errors.Errorf("document exceeds %d byte limit", MaxUploadSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open document")
	}
	defer func() { _ = f.Close() }()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-document", pr)
	if err != nil {
		return nil, errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "upload document")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		detail := readErrorDetail(resp.Body)
		return nil, errors.Errorf("upload document: status %d: %s", resp.StatusCode, detail)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode upload response")
	}
	return &doc, nil
}

// readErrorDetail extracts the producer's {"detail": ...} error body when
// present, falling back to the raw text.
func readErrorDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return "upload failed"
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return strings.TrimSpace(string(b))
}
