// SPDX-License-Identifier: MPL-2.0

// Package s3store provides a repository.Store backed by Amazon S3 or any
// S3-compatible object store (MinIO, R2, etc.).
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

const recordExt = ".rec"

var _ repository.Store = (*Store)(nil)

type (
	// Client abstracts the S3 API operations used by Store.
	// The *s3.Client type satisfies this interface.
	Client interface {
		GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
		PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
		DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
		ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	}

	// Store keeps each record in one object. A PutObject replaces an object
	// atomically, so readers see either the old or the new record.
	Store struct {
		client Client
		bucket string
		prefix string
	}

	// Config describes the bucket and endpoint for Open.
	Config struct {
		Bucket string
		// Prefix is prepended to all object keys; empty for none.
		Prefix string
		Region string
		// Endpoint overrides the service endpoint for S3-compatible stores.
		Endpoint string
		// PathStyle addresses the bucket in the URL path instead of the host name.
		PathStyle bool

		// AccessKeyID and SecretAccessKey are static credentials. When both are
		// empty requests are sent unsigned.
		AccessKeyID     string
		SecretAccessKey string
		SessionToken    string
	}
)

// Open builds an S3 client from cfg and returns a Store using it.
func Open(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket must not be empty")
	}

	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Source:          "scriptvault config",
		}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}

	return New(s3.New(opts), cfg.Bucket, cfg.Prefix), nil
}

// New returns a Store that uses a pre-configured client.
func New(client Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Put uploads data as the object for id.
func (s *Store) Put(ctx context.Context, id archive.ModuleID, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/msgpack"),
	})
	return err
}

// GetMany downloads the objects for ids, skipping ids without an object.
func (s *Store) GetMany(ctx context.Context, ids []archive.ModuleID) (map[archive.ModuleID][]byte, error) {
	result := make(map[archive.ModuleID][]byte, len(ids))
	for _, id := range ids {
		data, err := s.get(ctx, id)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[id] = data
	}
	return result, nil
}

func (s *Store) get(ctx context.Context, id archive.ModuleID) (data []byte, err error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := out.Body.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	data, err = io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", s.key(id), err)
	}
	return data, nil
}

// Delete removes the object for id. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, id archive.ModuleID) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if isNotFound(err) {
		return nil
	}
	return err
}

// Keys lists all record objects under the prefix. Objects whose key does not
// decode to a module id are ignored.
func (s *Store) Keys(ctx context.Context) ([]archive.ModuleID, error) {
	listPrefix := s.keyPrefix()

	var ids []archive.ModuleID
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if id, ok := decodeKey(strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Close is a no-op; the S3 client holds no resources that need releasing.
func (s *Store) Close() error { return nil }

func (s *Store) keyPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

func (s *Store) key(id archive.ModuleID) string {
	return s.keyPrefix() + url.PathEscape(id.String()) + recordExt
}

func decodeKey(name string) (archive.ModuleID, bool) {
	if strings.Contains(name, "/") || !strings.HasSuffix(name, recordExt) {
		return archive.ModuleID{}, false
	}
	raw, err := url.PathUnescape(strings.TrimSuffix(name, recordExt))
	if err != nil {
		return archive.ModuleID{}, false
	}
	id, err := archive.ParseModuleID(raw)
	if err != nil {
		return archive.ModuleID{}, false
	}
	return id, true
}

// isNotFound reports whether err indicates the S3 object does not exist.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
