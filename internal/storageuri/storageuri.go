// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

// Package storageuri parses the `scheme://host/path` storage locators used
// throughout Nebula's domain-locator templates and block signatures, and
// provides the small file-listing/reading surface (FileSystem) each
// supported scheme needs during ingestion.
package storageuri

import (
	"fmt"
	"net/url"
)

// Scheme is one of the storage backends spec's wire protocol names.
type Scheme string

// Supported schemes, per spec's "Storage locators" section.
const (
	File Scheme = "file"
	S3   Scheme = "s3"
	GS   Scheme = "gs"
	ABFS Scheme = "abfs"
	HTTP Scheme = "http"
)

// Locator is a parsed storage locator: scheme, host (bucket/container for
// cloud schemes, empty for file), and path.
type Locator struct {
	Scheme Scheme
	Host   string
	Path   string
}

// String reassembles the locator into its canonical wire form.
func (l Locator) String() string {
	if l.Scheme == File && l.Host == "" {
		return l.Path
	}
	return fmt.Sprintf("%s://%s%s", l.Scheme, l.Host, l.Path)
}

// Parse parses a storage locator. An absent scheme (no "://") defaults to
// File, per spec: "Absent-scheme paths default to local filesystem."
func Parse(raw string) (Locator, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, fmt.Errorf("storageuri: %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return Locator{Scheme: File, Path: raw}, nil
	}

	scheme := Scheme(u.Scheme)
	switch scheme {
	case File, S3, GS, ABFS, HTTP:
	default:
		return Locator{}, fmt.Errorf("storageuri: %q: unsupported scheme %q", raw, u.Scheme)
	}

	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return Locator{Scheme: scheme, Host: u.Host, Path: path}, nil
}
