package assets

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureConfig holds Azure Blob Storage settings.
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	ContainerName string `mapstructure:"container"`
	// Endpoint overrides https://<account>.blob.core.windows.net/.
	Endpoint string `mapstructure:"endpoint"`
}

// AzureStore is an ObjectStore on one Azure Blob container.
type AzureStore struct {
	client    *azblob.Client
	container *container.Client
	name      string
}

func NewAzureStore(cfg AzureConfig) (*AzureStore, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("account name is required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("container is required")
	}

	blobURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	if cfg.Endpoint != "" {
		blobURL = cfg.Endpoint
	}
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(blobURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}
	return &AzureStore{
		client:    client,
		container: client.ServiceClient().NewContainerClient(cfg.ContainerName),
		name:      cfg.ContainerName,
	}, nil
}

func (s *AzureStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pager := s.client.NewListBlobsFlatPager(s.name, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}

// Copy starts a server side copy. Copies inside one storage account finish
// synchronously.
func (s *AzureStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	srcURL := s.container.NewBlobClient(srcKey).URL()
	_, err := s.container.NewBlobClient(dstKey).StartCopyFromURL(ctx, srcURL, nil)
	if err != nil {
		return fmt.Errorf("failed to copy blob: %w", err)
	}
	return nil
}
