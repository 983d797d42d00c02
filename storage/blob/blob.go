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
	"bytes"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/gorse-io/cinecluster/config"
	"github.com/juju/errors"
)

const (
	POSIXPrefix = "posix://"
	S3Prefix    = "s3://"
	GCSPrefix   = "gcs://"
	AzurePrefix = "azblob://"
)

// Store is a flat namespace of named blobs.
type Store interface {
	// Open a blob for reading. A missing blob yields a NotFound error.
	Open(name string) (io.ReadCloser, error)
	// Create a blob for writing. The done channel receives the result of the
	// upload once the writer is closed.
	Create(name string) (io.WriteCloser, chan error, error)
	List() ([]string, error)
	Remove(name string) error
}

// Open a blob store by URI: a local path, posix://dir, s3://bucket/prefix,
// gcs://bucket/prefix or azblob://container/prefix.
func Open(uri string, cfg config.BlobConfig) (Store, error) {
	switch {
	case strings.HasPrefix(uri, S3Prefix):
		bucket, prefix, err := splitBucket(uri)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewS3(cfg.S3, bucket, prefix)
	case strings.HasPrefix(uri, GCSPrefix):
		bucket, prefix, err := splitBucket(uri)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewGCS(cfg.GCS, bucket, prefix)
	case strings.HasPrefix(uri, AzurePrefix):
		container, prefix, err := splitBucket(uri)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewAzureBlob(cfg.Azure, container, prefix)
	case strings.HasPrefix(uri, POSIXPrefix):
		return NewPOSIX(uri[len(POSIXPrefix):]), nil
	case strings.Contains(uri, "://"):
		return nil, errors.NotSupportedf("blob store %s", uri)
	default:
		return NewPOSIX(uri), nil
	}
}

var contentTypes = map[string]string{
	".png":  "image/png",
	".json": "application/json",
}

// contentType of an artifact. Binary model files are octet streams.
func contentType(name string) string {
	if t, ok := contentTypes[path.Ext(name)]; ok {
		return t
	}
	return "application/octet-stream"
}

func splitBucket(uri string) (string, string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", errors.Trace(err)
	}
	if parsed.Host == "" {
		return "", "", errors.NotValidf("blob uri %s without bucket", uri)
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), nil
}

// Write a blob with the content produced by write and wait for the upload.
func Write(store Store, name string, write func(w io.Writer) error) error {
	w, done, err := store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = write(w); err != nil {
		if pw, ok := w.(*io.PipeWriter); ok {
			_ = pw.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		<-done
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		<-done
		return errors.Trace(err)
	}
	return errors.Trace(<-done)
}

// WriteBytes writes data into a blob.
func WriteBytes(store Store, name string, data []byte) error {
	return Write(store, name, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ReadBytes reads a whole blob.
func ReadBytes(store Store, name string) ([]byte, error) {
	r, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err = io.Copy(&buf, r); err != nil {
		return nil, errors.Trace(err)
	}
	return buf.Bytes(), nil
}
