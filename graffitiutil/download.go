/*
Copyright © 2026 the Graffiti City authors.
This file is part of Graffiti City.

Graffiti City is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Graffiti City is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Graffiti City.  If not, see <http://www.gnu.org/licenses/>.
*/

package graffitiutil

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/ctessum/requestcache"
	"github.com/floraaa826/Graffiti-City/internal/hash"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
)

// maxRetries is the number of times a failed HTTP download is retried.
const maxRetries = 5

// downloader fetches remote input files into a local cache directory.
// HTTP responses are cached on disk by URL, so repeated runs do not fetch
// the same file twice.
type downloader struct {
	dir   string
	cache *requestcache.Cache
	log   logrus.FieldLogger
}

// newDownloader creates a downloader that stores files in dir. If dir is
// empty a temporary directory is used.
func newDownloader(dir string, log logrus.FieldLogger) (*downloader, error) {
	if dir == "" {
		var err error
		dir, err = ioutil.TempDir("", "graffiti")
		if err != nil {
			return nil, fmt.Errorf("graffitiutil: creating temporary download directory: %v", err)
		}
	}
	// Raw responses are cached apart from the downloaded files.
	responses := filepath.Join(dir, "responses")
	if err := os.MkdirAll(responses, os.ModePerm); err != nil {
		return nil, fmt.Errorf("graffitiutil: creating download directory: %v", err)
	}
	d := &downloader{dir: dir, log: log}
	d.cache = requestcache.NewCache(d.fetch, runtime.GOMAXPROCS(-1),
		requestcache.Deduplicate(), requestcache.Disk(responses, marshalBytes, unmarshalBytes))
	return d, nil
}

// marshalBytes stores a downloaded body. The disk cache passes a pointer
// to the result.
func marshalBytes(v interface{}) ([]byte, error) {
	p, ok := v.(*interface{})
	if !ok {
		return nil, fmt.Errorf("graffitiutil: invalid cache payload %T", v)
	}
	b, ok := (*p).([]byte)
	if !ok {
		return nil, fmt.Errorf("graffitiutil: invalid cache payload %T", *p)
	}
	return b, nil
}

func unmarshalBytes(b []byte) (interface{}, error) { return b, nil }

// maybeDownload checks if the input is an existing local file.
// If not, and the path is an HTTP URL or a blob location, it downloads
// the file and returns the path to the downloaded file.
// For shapefiles, it downloads all associated files and
// returns the path to the file with the ".shp" extension.
// Paths that are neither local files nor remote locations are
// returned unchanged so that the caller reports the missing file.
func (d *downloader) maybeDownload(ctx context.Context, path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return d.downloadHTTP(ctx, path)
	}
	if IsBlob(path) {
		return d.downloadBlob(ctx, path)
	}
	return path, nil
}

// fetch downloads the URL in request with exponential backoff.
func (d *downloader) fetch(ctx context.Context, request interface{}) (interface{}, error) {
	u := request.(string)
	var body []byte
	var status int
	op := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		status = resp.StatusCode
		if status >= 500 {
			return fmt.Errorf("graffitiutil: downloading %s: %s", u, resp.Status)
		}
		if status != http.StatusOK {
			return nil // Not worth retrying.
		}
		body, err = ioutil.ReadAll(resp.Body)
		return err
	}
	err := backoff.RetryNotify(op,
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries),
		func(err error, t time.Duration) {
			d.log.WithError(err).Warnf("retrying in %v", t)
		},
	)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("graffitiutil: downloading %s: status %d", u, status)
	}
	return body, nil
}

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file.
func (d *downloader) downloadHTTP(ctx context.Context, path string) (string, error) {
	dir := filepath.Join(d.dir, hash.Hash(path))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return path, fmt.Errorf("graffitiutil: creating download directory: %v", err)
	}
	fnames := expandShp(path)
	for _, fname := range fnames {
		req := d.cache.NewRequest(ctx, fname, hash.Hash(fname))
		result, err := req.Result()
		if err != nil {
			if optional(fname) {
				continue
			}
			return path, err
		}
		local := filepath.Join(dir, filepath.Base(fname))
		if err := ioutil.WriteFile(local, result.([]byte), 0644); err != nil {
			return path, fmt.Errorf("graffitiutil: saving download: %v", err)
		}
		d.log.WithField("url", fname).Debug("downloaded")
	}
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// The currently accepted storage providers are "file" for the local filesystem,
// where name is a directory, "gs" for Google Cloud Storage, and "s3" for
// AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("graffitiutil.OpenBucket: %v", err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.NewBucket(u.Host + u.Path)
	case "gs":
		return gsBucket(ctx, u.Host)
	case "s3":
		return s3Bucket(ctx, u.Host)
	default:
		return nil, fmt.Errorf("graffitiutil.OpenBucket: invalid provider %s", u.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name)
}

// splitBlob splits a blob path into its bucket and key. For "file" blobs
// the bucket is the directory holding the file.
func splitBlob(path string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "file" {
		full := u.Host + u.Path
		return "file://" + filepath.Dir(full), filepath.Base(full), nil
	}
	return u.Scheme + "://" + u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// downloadBlob downloads the specified file from blob storage.
func (d *downloader) downloadBlob(ctx context.Context, path string) (string, error) {
	bucketName, key, err := splitBlob(path)
	if err != nil {
		return path, fmt.Errorf("graffitiutil: parsing blob location: %v", err)
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return path, err
	}
	dir := filepath.Join(d.dir, hash.Hash(path))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return path, fmt.Errorf("graffitiutil: creating download directory: %v", err)
	}
	for _, k := range expandShp(key) {
		if err := copyBlob(ctx, bucket, k, filepath.Join(dir, filepath.Base(k))); err != nil && !optional(k) {
			return path, err
		}
	}
	return filepath.Join(dir, filepath.Base(key)), nil
}

func copyBlob(ctx context.Context, bucket *blob.Bucket, key, local string) error {
	r, err := bucket.NewReader(ctx, key)
	if err != nil {
		return fmt.Errorf("graffitiutil: opening blob %s: %v", key, err)
	}
	defer r.Close()
	w, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("graffitiutil: creating file for download: %v", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("graffitiutil: downloading blob %s: %v", key, err)
	}
	return w.Close()
}

// optional reports whether a file may be missing from a remote shapefile.
func optional(filename string) bool { return filepath.Ext(filename) == ".prj" }

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise
func expandShp(filename string) []string {
	o := []string{filename}
	if filepath.Ext(filename) != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}
