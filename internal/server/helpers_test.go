package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"jotter/internal/blobstore"
	"jotter/internal/models"
	"jotter/internal/store"
)

const testNoteID = "nt-test01"

type testEnv struct {
	store   *store.Store
	blobs   *blobstore.LocalStore
	metrics *Metrics
	svc     *AttachmentService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func openTestBlobs(t *testing.T) *blobstore.LocalStore {
	t.Helper()
	blobs, err := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	return blobs
}

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	metrics, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	return metrics
}

// newTestEnv wires a service over real SQLite and local blob stores. The
// registry and blob store seen by the service can be wrapped for fault injection.
func newTestEnv(t *testing.T, wrapRegistry func(store.AttachmentRegistry) store.AttachmentRegistry, wrapBlobs func(blobstore.BlobStore) blobstore.BlobStore) *testEnv {
	t.Helper()
	env := &testEnv{store: openTestStore(t), blobs: openTestBlobs(t), metrics: newTestMetrics(t)}

	var registry store.AttachmentRegistry = env.store
	if wrapRegistry != nil {
		registry = wrapRegistry(registry)
	}
	var blobs blobstore.BlobStore = env.blobs
	if wrapBlobs != nil {
		blobs = wrapBlobs(blobs)
	}
	env.svc = NewAttachmentService(env.store, registry, blobs, discardLogger(), env.metrics)

	if err := env.store.CreateNote(context.Background(), &models.Note{ID: testNoteID, Title: "Test note"}); err != nil {
		t.Fatalf("create note: %v", err)
	}
	return env
}

func (env *testEnv) blobKeys(t *testing.T) []string {
	t.Helper()
	blobs, err := env.blobs.List(context.Background())
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	keys := make([]string, 0, len(blobs))
	for _, blob := range blobs {
		keys = append(keys, blob.Key)
	}
	return keys
}

func (env *testEnv) registryList(t *testing.T) []models.Attachment {
	t.Helper()
	list, err := env.store.ListAttachments(context.Background(), testNoteID)
	if err != nil {
		t.Fatalf("list attachments: %v", err)
	}
	return list
}

// failingRegistry fails every append; other calls reach the real registry.
type failingRegistry struct {
	store.AttachmentRegistry
	appendErr error
}

func (r *failingRegistry) AppendAttachment(ctx context.Context, noteID string, attachment models.Attachment) ([]models.Attachment, error) {
	return nil, r.appendErr
}

// failingDeletes makes every blob delete fail while leaving the blob in place.
type failingDeletes struct {
	blobstore.BlobStore
	deleteErr error
	calls     int
}

func (b *failingDeletes) Delete(ctx context.Context, key string) error {
	b.calls++
	return b.deleteErr
}

var errInjected = errors.New("injected failure")

func assertAPIError(t *testing.T, err error, status, errCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	if got := httpStatusFromError(err); got != status {
		t.Fatalf("expected status %d, got %d (%v)", status, got, err)
	}
	if got := errorNumericCode(status, err); got != errCode {
		t.Fatalf("expected error code %d, got %d (%v)", errCode, got, err)
	}
}
