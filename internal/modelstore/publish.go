package modelstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Uploader is the subset of *azblob.Client the publisher needs.
type Uploader interface {
	UploadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error)
}

// BlobPublisher copies a model directory to an Azure Blob Storage container.
type BlobPublisher struct {
	AccountURL string
	Container  string
	Prefix     string

	client Uploader
}

// NewBlobPublisher authenticates with cred, or DefaultAzureCredential when
// cred is nil.
func NewBlobPublisher(accountURL, container, prefix string, cred azcore.TokenCredential) (*BlobPublisher, error) {
	if accountURL == "" || container == "" {
		return nil, errors.New("modelstore: blob publishing needs an account URL and a container")
	}
	if cred == nil {
		c, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("modelstore: creating credential: %w", err)
		}
		cred = c
	}
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("modelstore: creating blob client: %w", err)
	}
	return newBlobPublisher(accountURL, container, prefix, client), nil
}

func newBlobPublisher(accountURL, container, prefix string, client Uploader) *BlobPublisher {
	return &BlobPublisher{AccountURL: accountURL, Container: container, Prefix: prefix, client: client}
}

// Publish uploads the manifest and member files of dir. Blob names are the
// file names under Prefix.
func (p *BlobPublisher) Publish(ctx context.Context, dir string) error {
	files, err := Files(dir)
	if err != nil {
		return err
	}
	for _, name := range files {
		if err := p.upload(ctx, filepath.Join(dir, name), path.Join(p.Prefix, name)); err != nil {
			return err
		}
	}
	slog.Info("model published", "account", p.AccountURL, "container", p.Container, "prefix", p.Prefix, "files", len(files))
	return nil
}

func (p *BlobPublisher) upload(ctx context.Context, src, blob string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("modelstore: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if _, err := p.client.UploadFile(ctx, p.Container, blob, f, nil); err != nil {
		return fmt.Errorf("modelstore: uploading %s: %w", blob, err)
	}
	slog.Debug("uploaded blob", "container", p.Container, "blob", blob)
	return nil
}
