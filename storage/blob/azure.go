// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azureblob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/config"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// AzureBlob keeps artifacts in an Azure Blob Storage container. The container
// is created on the first write if it does not exist.
type AzureBlob struct {
	client    *azblob.Client
	container string
	prefix    string
	ready     atomic.Bool
}

func NewAzureBlob(cfg config.AzureBlobConfig, container string, prefix string) (*AzureBlob, error) {
	var (
		client *azblob.Client
		err    error
	)
	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, errors.Trace(err)
		}
	} else {
		if cfg.AccountName == "" || cfg.AccountKey == "" {
			return nil, errors.NotValidf("azure blob config without account_name, account_key or connection_string")
		}
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
		}
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, errors.Trace(err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return &AzureBlob{
		client:    client,
		container: container,
		prefix:    strings.Trim(prefix, "/"),
	}, nil
}

func (a *AzureBlob) ensureContainer(ctx context.Context) error {
	if a.ready.Load() {
		return nil
	}
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return errors.Trace(err)
	}
	a.ready.Store(true)
	return nil
}

func (a *AzureBlob) Open(name string) (io.ReadCloser, error) {
	fullPath := path.Join(a.prefix, name)
	resp, err := a.client.DownloadStream(context.Background(), a.container, fullPath, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, errors.NewNotFound(err, name)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return resp.Body, nil
}

// Create uploads a blob. The content type is derived from the artifact name so
// that plots can be fetched directly from the container.
func (a *AzureBlob) Create(name string) (io.WriteCloser, chan error, error) {
	ctx := context.Background()
	if err := a.ensureContainer(ctx); err != nil {
		return nil, nil, errors.Annotatef(err, "failed to create container %s", a.container)
	}
	fullPath := path.Join(a.prefix, name)
	mimeType := contentType(name)
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		defer close(done)
		_, err := a.client.UploadStream(ctx, a.container, fullPath, pr, &azblob.UploadStreamOptions{
			HTTPHeaders: &azureblob.HTTPHeaders{BlobContentType: &mimeType},
		})
		if err != nil {
			_ = pr.CloseWithError(err)
			log.Logger().Error("failed to upload artifact to Azure Blob", zap.String("artifact", fullPath), zap.Error(err))
		}
		done <- errors.Trace(err)
	}()
	return pw, done, nil
}

func (a *AzureBlob) List() ([]string, error) {
	var (
		prefix *string
		names  []string
	)
	if a.prefix != "" {
		p := a.prefix + "/"
		prefix = &p
	}
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{Prefix: prefix})
	for pager.More() {
		resp, err := pager.NextPage(context.Background())
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return nil, nil
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if name := strings.TrimPrefix(*item.Name, a.prefix+"/"); name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (a *AzureBlob) Remove(name string) error {
	fullPath := path.Join(a.prefix, name)
	_, err := a.client.DeleteBlob(context.Background(), a.container, fullPath, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return errors.NewNotFound(err, name)
	}
	return errors.Trace(err)
}
