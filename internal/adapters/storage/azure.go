package storage

import (
	"context"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// AzurePublisher uploads produced rasters to Azure Blob Storage.
type AzurePublisher struct {
	client    *azblob.Client
	container string
	prefix    string
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string
	AccountName      string
	AccountKey       string
	ConnectionString string
	Prefix           string
}

var _ output.Publisher = (*AzurePublisher)(nil)

// NewAzurePublisher creates a new Azure Blob Storage publisher.
func NewAzurePublisher(cfg AzureConfig) (*AzurePublisher, error) {
	if cfg.Container == "" {
		return nil, &domain.ConfigError{Field: "publish.azure.container", Message: "container is required"}
	}

	var client *azblob.Client
	var err error

	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	} else {
		url := "https://" + cfg.AccountName + ".blob.core.windows.net/"
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err == nil {
			client, err = azblob.NewClientWithSharedKeyCredential(url, cred, nil)
		}
	}
	if err != nil {
		return nil, &domain.ConfigError{Field: "publish.azure", Message: err.Error()}
	}

	return &AzurePublisher{
		client:    client,
		container: cfg.Container,
		prefix:    strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Publish uploads localPath and returns the blob URL.
func (p *AzurePublisher) Publish(ctx context.Context, localPath string, key string) (string, error) {
	f, err := os.Open(localPath) //#nosec G304 -- localPath was produced by this process
	if err != nil {
		return "", &domain.StorageError{Operation: "publish", Key: localPath, Err: err}
	}
	defer func() { _ = f.Close() }()

	name := p.fullKey(key)
	ct := contentType(localPath)
	_, err = p.client.UploadFile(ctx, p.container, name, f, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		return "", &domain.StorageError{Operation: "publish", Key: name, Err: err}
	}

	return strings.TrimSuffix(p.client.URL(), "/") + "/" + p.container + "/" + name, nil
}

// fullKey returns the full blob name including prefix.
func (p *AzurePublisher) fullKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if p.prefix == "" {
		return key
	}
	return p.prefix + "/" + key
}
