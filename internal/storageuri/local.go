// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package storageuri

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// LocalFileSystem implements FileSystem over the local disk, for the File
// scheme (and any absent-scheme locator).
type LocalFileSystem struct{}

// List reads the directory at path, non-recursively.
func (LocalFileSystem) List(_ context.Context, path string) ([]FileInfo, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, FileInfo{
			IsDir:     e.IsDir(),
			Timestamp: info.ModTime().Unix(),
			Size:      info.Size(),
			Name:      e.Name(),
			Domain:    path,
		})
	}
	return out, nil
}

// Open opens the file at path.
func (LocalFileSystem) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Info stats the file at path.
func (LocalFileSystem) Info(_ context.Context, path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		IsDir:     info.IsDir(),
		Timestamp: info.ModTime().Unix(),
		Size:      info.Size(),
		Name:      filepath.Base(path),
		Domain:    filepath.Dir(path),
	}, nil
}
