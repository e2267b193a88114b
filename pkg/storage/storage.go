// Package storage provides blob storage operations with an Azure Blob Storage implementation.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/mxn2020/prompt-verse-io/pkg/lifecycle"
)

// MaxListCap is the upper bound on blobs returned by a single List call.
const MaxListCap int32 = 5000

// BlobMeta describes a stored blob without its content.
type BlobMeta struct {
	Key           string    `json:"key"`
	ContentType   string    `json:"content_type"`
	ContentLength int64     `json:"content_length"`
	LastModified  time.Time `json:"last_modified"`
}

// BlobList is a single page of blob metadata. NextMarker is empty on the last page.
type BlobList struct {
	Blobs      []BlobMeta `json:"blobs"`
	NextMarker string     `json:"next_marker,omitempty"`
}

// DownloadResult carries a blob stream and its headers. The caller must close Body.
type DownloadResult struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// System manages blob storage operations and lifecycle coordination.
type System interface {
	// Start registers a startup hook that initializes the storage container.
	Start(lc *lifecycle.Coordinator) error
	// Upload streams data to a blob at the given key with the specified content type.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download returns a stream for the blob at the given key.
	// Returns ErrNotFound if the blob does not exist.
	Download(ctx context.Context, key string) (*DownloadResult, error)
	// List returns one page of blobs under prefix, starting at marker.
	List(ctx context.Context, prefix, marker string, maxResults int32) (*BlobList, error)
	// Find returns metadata for the blob at key. Returns ErrNotFound if the blob does not exist.
	Find(ctx context.Context, key string) (*BlobMeta, error)
	// Delete removes the blob at the given key. Returns ErrNotFound if the blob does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a blob exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

type azure struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
	ready     atomic.Bool
}

// New creates a storage system from the given configuration.
// It validates the connection string and creates the Azure client
// but does not establish a connection until Start is called.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &azure{
		client:    client,
		container: cfg.ContainerName,
		logger:    logger.With("system", "storage"),
	}, nil
}

// ParseMaxResults parses a max_results query value. Empty input yields
// fallback; values above MaxListCap are clamped.
func ParseMaxResults(s string, fallback int32) (int32, error) {
	if s == "" {
		return fallback, nil
	}

	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("max_results must be a positive integer")
	}

	return min(int32(n), MaxListCap), nil
}

// Ready reports whether the container check at startup succeeded.
func (a *azure) Ready() bool {
	return a.ready.Load()
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	a.logger.Info("starting storage system")
	lc.Track("storage", a)

	lc.OnStartup(func() {
		_, err := a.client.CreateContainer(lc.Context(), a.container, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			a.logger.Error("storage container initialization failed", "error", err)
			return
		}

		a.ready.Store(true)
		a.logger.Info("storage container ready", "container", a.container)
	})

	return nil
}

func (a *azure) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}

	if _, err := a.client.UploadStream(ctx, a.container, key, reader, opts); err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	return nil
}

func (a *azure) Download(ctx context.Context, key string) (*DownloadResult, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", key, err)
	}

	return &DownloadResult{
		Body:          resp.Body,
		ContentType:   deref(resp.ContentType),
		ContentLength: deref(resp.ContentLength),
	}, nil
}

func (a *azure) List(ctx context.Context, prefix, marker string, maxResults int32) (*BlobList, error) {
	opts := &azblob.ListBlobsFlatOptions{
		MaxResults: &maxResults,
	}
	if prefix != "" {
		opts.Prefix = &prefix
	}
	if marker != "" {
		opts.Marker = &marker
	}

	pager := a.client.NewListBlobsFlatPager(a.container, opts)

	result := &BlobList{Blobs: make([]BlobMeta, 0)}
	if !pager.More() {
		return result, nil
	}

	page, err := pager.NextPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs %s: %w", prefix, err)
	}

	if page.Segment != nil {
		for _, item := range page.Segment.BlobItems {
			meta := BlobMeta{Key: deref(item.Name)}
			if p := item.Properties; p != nil {
				meta.ContentType = deref(p.ContentType)
				meta.ContentLength = deref(p.ContentLength)
				meta.LastModified = deref(p.LastModified)
			}
			result.Blobs = append(result.Blobs, meta)
		}
	}
	result.NextMarker = deref(page.NextMarker)

	return result, nil
}

func (a *azure) Find(ctx context.Context, key string) (*BlobMeta, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	props, err := a.blob(key).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find blob %s: %w", key, err)
	}

	return &BlobMeta{
		Key:           key,
		ContentType:   deref(props.ContentType),
		ContentLength: deref(props.ContentLength),
		LastModified:  deref(props.LastModified),
	}, nil
}

func (a *azure) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if _, err := a.client.DeleteBlob(ctx, a.container, key, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob %s: %w", key, err)
	}

	return nil
}

func (a *azure) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	if _, err := a.blob(key).GetProperties(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check blob existence %s: %w", key, err)
	}

	return true, nil
}

func (a *azure) blob(key string) *blob.Client {
	return a.client.
		ServiceClient().
		NewContainerClient(a.container).
		NewBlobClient(key)
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
