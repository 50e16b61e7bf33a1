package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/dmancini/pickflow/internal/config"
)

// AzureStore implements ResultStore on Azure Blob Storage using shared-key
// credentials. All objects live in a single container.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore creates an AzureStore from blob configuration.
func NewAzureStore(cfg config.BlobConfig) (*AzureStore, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	return &AzureStore{client: client, container: cfg.Container}, nil
}

func (s *AzureStore) Put(ctx context.Context, path string, data []byte) error {
	if _, err := s.client.UploadBuffer(ctx, s.container, path, data, nil); err != nil {
		return fmt.Errorf("upload blob %q: %w", path, err)
	}
	return nil
}

func (s *AzureStore) Get(ctx context.Context, path string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, path, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, path)
		}
		return nil, fmt.Errorf("download blob %q: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob %q: %w", path, err)
	}
	return data, nil
}

// Compile-time check that AzureStore implements ResultStore.
var _ ResultStore = (*AzureStore)(nil)
