package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/config"
	"github.com/AngelCh415/dmlab/internal/models"
)

// BlobStore keeps the envelope as a single JSON blob, the cloud copy of the state.
type BlobStore struct {
	client    *azblob.Client
	container string
	blobName  string
	log       *zap.Logger
}

func NewBlobStore(ctx context.Context, cfg config.AzureConfig, log *zap.Logger) (*BlobStore, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	_, err = client.CreateContainer(ctx, cfg.Container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	log.Info("Azure Blob Storage initialized",
		zap.String("container", cfg.Container),
		zap.String("blob", cfg.BlobName),
	)
	return &BlobStore{client: client, container: cfg.Container, blobName: cfg.BlobName, log: log}, nil
}

func (s *BlobStore) Name() string { return "azure" }

func (s *BlobStore) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) || strings.Contains(err.Error(), "BlobNotFound") {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *BlobStore) Save(ctx context.Context, env models.PersistedState) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	contentType := "application/json"
	_, err = s.client.UploadBuffer(ctx, s.container, s.blobName, b, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		Metadata: map[string]*string{
			"schemaversion": toPtr(fmt.Sprint(env.SchemaVersion)),
			"savedat":       toPtr(env.SavedAt),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob: %w", err)
	}
	s.log.Debug("state uploaded", zap.String("blob", s.blobName), zap.Int("size", len(b)))
	return nil
}

func (s *BlobStore) Close() error { return nil }

func toPtr(s string) *string { return &s }
