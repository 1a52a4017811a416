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
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func testDownloader(t *testing.T) (*downloader, func()) {
	dir, err := ioutil.TempDir("", "graffiti_download")
	if err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.Out = ioutil.Discard
	d, err := newDownloader(dir, log)
	if err != nil {
		t.Fatal(err)
	}
	return d, func() { os.RemoveAll(dir) }
}

func TestMaybeDownloadLocal(t *testing.T) {
	d, cleanup := testDownloader(t)
	defer cleanup()
	for _, path := range []string{"/dev/null", "/blah/test/", ""} {
		k, err := d.maybeDownload(context.Background(), path)
		if err != nil {
			t.Fatal(err)
		}
		if k != path {
			t.Errorf("expected %s, got %s", path, k)
		}
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.Dir("../testdata")))
	defer srv.Close()
	d, cleanup := testDownloader(t)
	defer cleanup()

	k, err := d.maybeDownload(context.Background(), srv.URL+"/rows.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(k, "rows.json") || !strings.HasPrefix(k, d.dir) {
		t.Errorf("expected %s/.../rows.json, got %s", d.dir, k)
	}
	have, err := ioutil.ReadFile(k)
	if err != nil {
		t.Fatal(err)
	}
	want, err := ioutil.ReadFile("../testdata/rows.json")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(have, want) {
		t.Error("downloaded file differs from the source file")
	}

	// The second request is served from the cache.
	k2, err := d.maybeDownload(context.Background(), srv.URL+"/rows.json")
	if err != nil {
		t.Fatal(err)
	}
	if k2 != k {
		t.Errorf("expected %s, got %s", k, k2)
	}
}

func TestMaybeDownloadRemoteShapefile(t *testing.T) {
	dir, err := ioutil.TempDir("", "graffiti_shp")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		if err := ioutil.WriteFile(filepath.Join(dir, "boundary"+ext), []byte(ext), 0644); err != nil {
			t.Fatal(err)
		}
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()
	d, cleanup := testDownloader(t)
	defer cleanup()

	k, err := d.maybeDownload(context.Background(), srv.URL+"/boundary.shp")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(k) != "boundary.shp" {
		t.Errorf("expected boundary.shp, got %s", k)
	}
	for _, ext := range []string{".shx", ".dbf"} {
		if _, err := os.Stat(strings.TrimSuffix(k, ".shp") + ext); err != nil {
			t.Error(err)
		}
	}
	if _, err := os.Stat(strings.TrimSuffix(k, ".shp") + ".prj"); !os.IsNotExist(err) {
		t.Error("missing .prj should not have been created")
	}
}

func TestMaybeDownloadRemoteFail(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.Dir("../testdata")))
	defer srv.Close()
	d, cleanup := testDownloader(t)
	defer cleanup()
	if _, err := d.maybeDownload(context.Background(), srv.URL+"/missing.json"); err == nil {
		t.Error("expected an error")
	}
}

func TestMaybeDownloadBlob(t *testing.T) {
	dir, err := ioutil.TempDir("", "graffiti_bucket")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	remote := "file://" + dir + "/incidents.json"
	if err := uploadFile(context.Background(), "../testdata/incidents.json", remote); err != nil {
		t.Fatal(err)
	}

	d, cleanup := testDownloader(t)
	defer cleanup()
	k, err := d.maybeDownload(context.Background(), remote)
	if err != nil {
		t.Fatal(err)
	}
	have, err := ioutil.ReadFile(k)
	if err != nil {
		t.Fatal(err)
	}
	want, err := ioutil.ReadFile("../testdata/incidents.json")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(have, want) {
		t.Error("downloaded blob differs from the source file")
	}
}

func TestSplitBlob(t *testing.T) {
	tests := []struct {
		path, bucket, key string
	}{
		{path: "gs://bucket/dir/file.shp", bucket: "gs://bucket", key: "dir/file.shp"},
		{path: "s3://bucket/file.stl", bucket: "s3://bucket", key: "file.stl"},
		{path: "file:///tmp/out/file.stl", bucket: "file:///tmp/out", key: "file.stl"},
	}
	for _, test := range tests {
		bucket, key, err := splitBlob(test.path)
		if err != nil {
			t.Fatal(err)
		}
		if bucket != test.bucket || key != test.key {
			t.Errorf("%s: have (%s, %s), want (%s, %s)", test.path, bucket, key, test.bucket, test.key)
		}
	}
}

func TestOpenBucketInvalid(t *testing.T) {
	if _, err := OpenBucket(context.Background(), "ftp://bucket"); err == nil {
		t.Error("expected an error")
	}
}

func TestExpandShp(t *testing.T) {
	want := []string{"a/b.shp", "a/b.dbf", "a/b.shx", "a/b.prj"}
	if have := expandShp("a/b.shp"); !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	if have := expandShp("a/b.json"); !reflect.DeepEqual(have, []string{"a/b.json"}) {
		t.Errorf("have %v", have)
	}
}
