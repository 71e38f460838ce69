package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"reports/2024/03/15/a.json", true},
		{"a", true},
		{"", false},
		{"/abs", false},
		{"a//b", false},
		{"a/../b", false},
		{"./a", false},
		{`a\b`, false},
		{"a/", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidKey)
			}
		})
	}
}

func TestReportKey(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	require.Equal(t, "reports/2024/03/15/statistics-20240315T090000Z.json", ReportKey("reports", at))
	require.Equal(t, "a/b/2024/03/15/statistics-20240315T090000Z.json", ReportKey("/a/b/", at))
	require.Equal(t, "2024/03/15/statistics-20240315T090000Z.json", ReportKey("", at))
}

func TestComputePath(t *testing.T) {
	p, err := ComputePath("/data", "reports/x.json")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/data", "reports", "x.json"), p)

	_, err = ComputePath("/data", "../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidKey)
}

// =============================================================================
// Filesystem
// =============================================================================

func TestFilesystemBackend(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	b, err := NewFilesystemBackend(base, zerolog.Nop())
	require.NoError(t, err)

	key := "reports/2024/03/15/statistics.json"
	body := []byte(`{"ok":true}`)

	exists, err := b.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, b.Put(ctx, key, bytes.NewReader(body), int64(len(body))))

	exists, err = b.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)

	rc, err := b.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	require.Equal(t, body, got)

	// Overwrite replaces the content.
	require.NoError(t, b.Put(ctx, key, strings.NewReader("v2"), 2))
	rc, err = b.Get(ctx, key)
	require.NoError(t, err)
	got, _ = io.ReadAll(rc)
	rc.Close()
	require.Equal(t, "v2", string(got))

	require.NoError(t, b.Delete(ctx, key))
	require.ErrorIs(t, b.Delete(ctx, key), ErrObjectNotFound)
	_, err = b.Get(ctx, key)
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFilesystemBackend_SizeMismatchLeavesNothing(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	b, err := NewFilesystemBackend(base, zerolog.Nop())
	require.NoError(t, err)

	err = b.Put(ctx, "r/a.json", strings.NewReader("abc"), 10)
	require.ErrorContains(t, err, "size mismatch")

	entries, err := os.ReadDir(filepath.Join(base, "r"))
	require.NoError(t, err)
	require.Empty(t, entries, "temp file is removed")
}

func TestFilesystemBackend_RejectsInvalidKeys(t *testing.T) {
	ctx := context.Background()
	b, err := NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	require.ErrorIs(t, b.Put(ctx, "../escape", strings.NewReader("x"), 1), ErrInvalidKey)
	_, err = b.Exists(ctx, "/abs")
	require.ErrorIs(t, err, ErrInvalidKey)
}

// =============================================================================
// S3
// =============================================================================

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *mockS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.HeadObjectOutput{}, args.Error(0)
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

func keyIs(key string) any {
	return mock.MatchedBy(func(in any) bool {
		switch v := in.(type) {
		case *s3.PutObjectInput:
			return *v.Key == key && *v.Bucket == "reports"
		case *s3.GetObjectInput:
			return *v.Key == key && *v.Bucket == "reports"
		case *s3.HeadObjectInput:
			return *v.Key == key && *v.Bucket == "reports"
		case *s3.DeleteObjectInput:
			return *v.Key == key && *v.Bucket == "reports"
		}
		return false
	})
}

func TestS3Backend_Put(t *testing.T) {
	client := new(mockS3)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "r/a.json" && *in.ContentType == "application/json" && *in.ContentLength == 2
	})).Return(nil)

	b := NewS3Backend(client, "reports", zerolog.Nop())
	require.NoError(t, b.Put(context.Background(), "r/a.json", strings.NewReader("{}"), 2))
	require.ErrorIs(t, b.Put(context.Background(), "/bad", strings.NewReader("{}"), 2), ErrInvalidKey)
	client.AssertExpectations(t)
}

func TestS3Backend_GetMapsNoSuchKey(t *testing.T) {
	client := new(mockS3)
	client.On("GetObject", mock.Anything, keyIs("missing")).Return(nil, &types.NoSuchKey{})
	client.On("GetObject", mock.Anything, keyIs("present")).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("data"))}, nil)

	b := NewS3Backend(client, "reports", zerolog.Nop())

	_, err := b.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrObjectNotFound)

	rc, err := b.Get(context.Background(), "present")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	require.Equal(t, "data", string(data))
}

func TestS3Backend_ExistsAndDelete(t *testing.T) {
	client := new(mockS3)
	client.On("HeadObject", mock.Anything, keyIs("gone")).Return(&types.NotFound{})
	client.On("HeadObject", mock.Anything, keyIs("here")).Return(nil)
	client.On("HeadObject", mock.Anything, keyIs("broken")).Return(errors.New("timeout"))
	client.On("DeleteObject", mock.Anything, keyIs("here")).Return(nil)

	b := NewS3Backend(client, "reports", zerolog.Nop())
	ctx := context.Background()

	exists, err := b.Exists(ctx, "gone")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = b.Exists(ctx, "broken")
	require.ErrorContains(t, err, "timeout")

	require.ErrorIs(t, b.Delete(ctx, "gone"), ErrObjectNotFound)
	require.NoError(t, b.Delete(ctx, "here"))
	client.AssertCalled(t, "DeleteObject", mock.Anything, keyIs("here"))
	client.AssertNotCalled(t, "DeleteObject", mock.Anything, keyIs("gone"))
}
