package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
)

// RunReportPrefix is the blob prefix under which run reports are archived
const RunReportPrefix = "runs/"

const blobKindRunReport = "run_report"

// AzureStorage archives run reports in Azure Blob Storage
type AzureStorage struct {
	client        *azblob.Client
	containerName string
}

// Ensure AzureStorage implements StorageInterface
var _ StorageInterface = (*AzureStorage)(nil)

// NewAzureStorage creates a new Azure Storage client using the default credential chain
func NewAzureStorage(ctx context.Context, accountName, containerName string) (*AzureStorage, error) {
	if accountName == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	storage := &AzureStorage{
		client:        client,
		containerName: containerName,
	}

	if err := storage.ensureContainer(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure container exists: %w", err)
	}

	return storage, nil
}

func (s *AzureStorage) ensureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.containerName, nil)
	switch {
	case err == nil:
		logrus.Infof("Created container %s", s.containerName)
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		logrus.Debugf("Container %s already exists", s.containerName)
	default:
		return fmt.Errorf("failed to create container: %w", err)
	}
	return nil
}

// blobProperties returns the headers and metadata a blob is uploaded with.
// Reports under runs/YYYY/MM/DD/<run-id>.json carry their run id and day.
func blobProperties(filename string) (*blob.HTTPHeaders, map[string]*string) {
	headers := &blob.HTTPHeaders{}
	if strings.EqualFold(path.Ext(filename), ".json") {
		headers.BlobContentType = to.Ptr("application/json; charset=utf-8")
	}

	rest, ok := strings.CutPrefix(filename, RunReportPrefix)
	if !ok {
		return headers, nil
	}

	metadata := map[string]*string{
		"kind":   to.Ptr(blobKindRunReport),
		"run_id": to.Ptr(strings.TrimSuffix(path.Base(rest), path.Ext(rest))),
	}
	if day := strings.Split(path.Dir(rest), "/"); len(day) == 3 {
		metadata["run_date"] = to.Ptr(strings.Join(day, "-"))
	}
	return headers, metadata
}

// Store uploads a run report
func (s *AzureStorage) Store(ctx context.Context, filename string, data []byte) error {
	headers, metadata := blobProperties(filename)
	_, err := s.client.UploadBuffer(ctx, s.containerName, filename, data, &azblob.UploadBufferOptions{
		BlockSize:   int64(1024 * 1024),
		Concurrency: 3,
		HTTPHeaders: headers,
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", filename, err)
	}

	logrus.WithFields(logrus.Fields{
		"container": s.containerName,
		"bytes":     len(data),
	}).Infof("Archived %s in Azure Blob Storage", filename)
	return nil
}

// Retrieve downloads an archived run report. A missing blob is ErrNotFound.
func (s *AzureStorage) Retrieve(ctx context.Context, filename string) ([]byte, error) {
	response, err := s.client.DownloadStream(ctx, s.containerName, filename, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil, fmt.Errorf("%w: blob %s", ErrNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", filename, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob content: %w", err)
	}

	return data, nil
}

// List returns the archived report names under prefix
func (s *AzureStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var blobNames []string
	pager := s.client.NewListBlobsFlatPager(s.containerName, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}

		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				blobNames = append(blobNames, *blob.Name)
			}
		}
	}

	return blobNames, nil
}
