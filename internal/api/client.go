package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"jotter/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "JOTTER_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for the jotter API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) CreateNote(ctx context.Context, req NoteCreateRequest) (models.Note, error) {
	var resp models.Note
	err := c.do(ctx, http.MethodPost, "/v1/notes", nil, req, &resp)
	return resp, err
}

func (c *Client) GetNote(ctx context.Context, id string) (models.Note, error) {
	var resp models.Note
	err := c.do(ctx, http.MethodGet, "/v1/notes/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListAttachments(ctx context.Context, noteID string) (AttachmentListResponse, error) {
	var resp AttachmentListResponse
	err := c.do(ctx, http.MethodGet, "/v1/notes/"+url.PathEscape(noteID)+"/attachments", nil, nil, &resp)
	return resp, err
}

func (c *Client) DeleteAttachment(ctx context.Context, noteID, attachmentID string) (AttachmentListResponse, error) {
	var resp AttachmentListResponse
	path := "/v1/notes/" + url.PathEscape(noteID) + "/attachments/" + url.PathEscape(attachmentID)
	err := c.do(ctx, http.MethodDelete, path, nil, nil, &resp)
	return resp, err
}

// UploadAttachment streams one file body to the single-file upload endpoint.
// size may be -1 when unknown.
func (c *Client) UploadAttachment(ctx context.Context, noteID, filename, mediaType string, content io.Reader, size int64) (models.Attachment, error) {
	var resp models.Attachment
	query := url.Values{}
	query.Set("note", noteID)
	query.Set("filename", filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/v1/attachments?"+query.Encode(), content)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mediaType)
	if size >= 0 {
		req.ContentLength = size
	}

	err = c.send(req, &resp)
	return resp, err
}

// UploadFile describes one part of a multipart batch upload.
type UploadFile struct {
	Filename  string
	MediaType string
	Content   io.Reader
}

// UploadAttachments sends files as one multipart batch. The response carries
// per-file errors for partial failures.
func (c *Client) UploadAttachments(ctx context.Context, noteID string, files []UploadFile) (BatchUploadResponse, error) {
	var resp BatchUploadResponse
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		for _, file := range files {
			header := textproto.MIMEHeader{}
			header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, filepath.Base(file.Filename)))
			header.Set("Content-Type", file.MediaType)
			part, err := writer.CreatePart(header)
			if err != nil {
				_ = pw.CloseWithError(err)
				return
			}
			if _, err := io.Copy(part, file.Content); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
		}
		_ = pw.CloseWithError(writer.Close())
	}()

	path := "/v1/notes/" + url.PathEscape(noteID) + "/attachments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		_ = pr.Close()
		return resp, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	err = c.send(req, &resp)
	_ = pr.Close()
	return resp, err
}

// DownloadAttachment copies the blob stored under key into w and returns the
// served content type.
func (c *Client) DownloadAttachment(ctx context.Context, key string, w io.Writer) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/attachments/"+url.PathEscape(key), nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", 0, decodeError(resp)
	}
	n, err := io.Copy(w, resp.Body)
	return resp.Header.Get("Content-Type"), n, err
}

func (c *Client) AdminGCBlobs(ctx context.Context, req BlobGCRequest, confirm bool) (BlobGCResponse, error) {
	var resp BlobGCResponse
	payload, err := json.Marshal(req)
	if err != nil {
		return resp, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/admin/gc-blobs", bytes.NewReader(payload))
	if err != nil {
		return resp, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if confirm {
		httpReq.Header.Set("X-Confirm", "true")
	}
	err = c.send(httpReq, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
