// SPDX-License-Identifier: MPL-2.0

package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
	"github.com/scriptvault/scriptvault/pkg/repository/repotest"
)

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey    = &apiError{code: "NoSuchKey", msg: "no such key"}
	errAccessDenied = &apiError{code: "AccessDenied", msg: "access denied"}
)

// fakeS3 is a thread-safe in-memory S3 backend. ListObjectsV2 pages through
// keys in lexical order, pageSize keys at a time.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int

	getErr  error
	listErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), pageSize: 2}
}

func (m *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	after := aws.ToString(in.ContinuationToken)
	var keys []string
	for _, k := range slices.Sorted(maps.Keys(m.objects)) {
		if strings.HasPrefix(k, prefix) && k > after {
			keys = append(keys, k)
		}
	}

	out := &s3.ListObjectsV2Output{}
	if len(keys) > m.pageSize {
		keys = keys[:m.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	out.KeyCount = aws.Int32(int32(len(keys)))
	return out, nil
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	repotest.Run(t, func(*testing.T) repository.Store {
		return New(newFakeS3(), "archives", "team/scripts/")
	})
}

func TestStore_KeyLayout(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	s := New(fake, "archives", "/vault/")
	if err := s.Put(context.Background(), archive.MustParseModuleID("com.acme/tools:1.0"), []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	want := "vault/com.acme%2Ftools:1.0.rec"
	if _, ok := fake.objects[want]; !ok {
		t.Errorf("object keys = %v, want %s", slices.Collect(maps.Keys(fake.objects)), want)
	}
}

func TestStore_KeysIgnoresForeignObjects(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.objects["p/readme.txt"] = nil
	fake.objects["p/nested/acme.rec"] = nil
	fake.objects["p/bad%zz.rec"] = nil
	fake.objects["other/acme.rec"] = nil
	fake.objects["p/acme.rec"] = nil

	keys, err := New(fake, "b", "p").Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != archive.MustParseModuleID("acme") {
		t.Errorf("Keys() = %v, want [acme]", keys)
	}
}

func TestStore_APIErrorsAreIOFailures(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	repo, err := repository.New("s3", New(fake, "b", ""))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	fake.getErr = errAccessDenied
	_, err = repo.GetScriptArchives(ctx, []archive.ModuleID{archive.MustParseModuleID("acme")})
	if !errors.Is(err, repository.ErrRepositoryIO) {
		t.Errorf("GetScriptArchives() error = %v, want ErrRepositoryIO", err)
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "AccessDenied" {
		t.Errorf("error should expose the S3 API error, got %v", err)
	}

	fake.listErr = errAccessDenied
	if _, err := repo.DefaultView().RepositorySummary(ctx); !errors.Is(err, repository.ErrRepositoryIO) {
		t.Errorf("RepositorySummary() error = %v, want ErrRepositoryIO", err)
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errNoSuchKey, true},
		{&apiError{code: "NotFound"}, true},
		{errAccessDenied, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := isNotFound(tt.err); got != tt.want {
			t.Errorf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestOpen_RequiresBucket(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Region: "us-east-1"}); err == nil {
		t.Error("Open() without bucket should fail")
	}
	s, err := Open(Config{Bucket: "b", Region: "us-east-1", Endpoint: "http://localhost:9000", PathStyle: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.bucket != "b" {
		t.Errorf("bucket = %q", s.bucket)
	}
}
