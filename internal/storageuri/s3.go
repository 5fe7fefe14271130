// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package storageuri

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3FileSystem implements FileSystem over an S3 bucket for the S3 scheme.
// Locator.Host is the bucket name; Locator.Path is the object key.
type S3FileSystem struct {
	bucket string
	client *s3.S3
}

// NewS3FileSystem builds an S3FileSystem for bucket using the default AWS
// session (region, credentials resolved the usual SDK ways).
func NewS3FileSystem(bucket string) (*S3FileSystem, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}
	return &S3FileSystem{bucket: bucket, client: s3.New(sess)}, nil
}

// List enumerates objects under the given key prefix.
func (fs *S3FileSystem) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	var out []FileInfo
	err := fs.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(fs.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			out = append(out, FileInfo{
				IsDir:     strings.HasSuffix(aws.StringValue(obj.Key), "/"),
				Timestamp: obj.LastModified.Unix(),
				Size:      aws.Int64Value(obj.Size),
				Name:      path.Base(aws.StringValue(obj.Key)),
				Domain:    fs.bucket + "/" + prefix,
			})
		}
		return true
	})
	return out, err
}

// Open returns a streaming reader for the object at key.
func (fs *S3FileSystem) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key = strings.TrimPrefix(key, "/")
	out, err := fs.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Info stats the object at key.
func (fs *S3FileSystem) Info(ctx context.Context, key string) (FileInfo, error) {
	key = strings.TrimPrefix(key, "/")
	out, err := fs.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Timestamp: out.LastModified.Unix(),
		Size:      aws.Int64Value(out.ContentLength),
		Name:      path.Base(key),
		Domain:    fs.bucket,
	}, nil
}
