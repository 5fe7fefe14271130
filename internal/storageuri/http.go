// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package storageuri

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
)

// ErrListUnsupported is returned by HTTPFileSystem.List: a single HTTP
// locator names one object, not a directory.
var ErrListUnsupported = errors.New("storageuri: http scheme does not support List")

// HTTPFileSystem implements FileSystem by fetching a single object over
// plain HTTP GET/HEAD, for the Http scheme.
type HTTPFileSystem struct {
	client *http.Client
	base   string // e.g. "http://host"
}

// NewHTTPFileSystem builds an HTTPFileSystem rooted at base.
func NewHTTPFileSystem(base string) *HTTPFileSystem {
	return &HTTPFileSystem{client: http.DefaultClient, base: base}
}

// List always fails: HTTP locators are opaque object URLs, not directories.
func (fs *HTTPFileSystem) List(context.Context, string) ([]FileInfo, error) {
	return nil, ErrListUnsupported
}

// Open issues a GET for path and returns the response body.
func (fs *HTTPFileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fs.base+p, nil)
	if err != nil {
		return nil, err
	}
	resp, err := fs.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("storageuri: GET %s%s: %s", fs.base, p, resp.Status)
	}
	return resp.Body, nil
}

// Info issues a HEAD for path.
func (fs *HTTPFileSystem) Info(ctx context.Context, p string) (FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fs.base+p, nil)
	if err != nil {
		return FileInfo{}, err
	}
	resp, err := fs.client.Do(req)
	if err != nil {
		return FileInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return FileInfo{}, fmt.Errorf("storageuri: HEAD %s%s: %s", fs.base, p, resp.Status)
	}
	return FileInfo{Size: resp.ContentLength, Name: path.Base(p), Domain: fs.base}, nil
}
