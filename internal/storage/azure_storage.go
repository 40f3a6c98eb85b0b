package storage

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
	"github.com/pixelpruner/pruneriq/pkg/validation"
)

// AzureStorage treats az://container/prefix references as folders
type AzureStorage struct {
	client *azblob.Client
}

// NewAzureStorage connects with a shared key; no request is made until first use
func NewAzureStorage(accountName string, accountKey string) (*AzureStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &AzureStorage{client: client}, nil
}

// List returns blob names directly under the reference prefix, relative to it
func (s *AzureStorage) List(ctx context.Context, dir string) ([]string, error) {
	container, prefix, err := validation.ParseAzureRef(dir)
	if err != nil {
		return nil, err
	}

	pager := s.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	var names []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return nil, apperrors.NewNotFoundError("container not found", err)
			}
			return nil, apperrors.NewNetworkError("failed to list blobs", err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			if name, ok := relativeBlobName(*item.Name, prefix); ok {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// Open downloads and decodes one blob
func (s *AzureStorage) Open(ctx context.Context, dir, name string) (image.Image, error) {
	container, prefix, err := validation.ParseAzureRef(dir)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, prefix+name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, apperrors.NewNotFoundError("blob not found", err)
		}
		return nil, apperrors.NewNetworkError("download failed", err)
	}
	defer resp.Body.Close()

	return DecodeImage(resp.Body)
}

// relativeBlobName strips prefix and rejects blobs in nested "directories"
func relativeBlobName(blobName, prefix string) (string, bool) {
	if !strings.HasPrefix(blobName, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(blobName, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
