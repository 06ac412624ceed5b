package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go-inventory-offline/internal/apperr"
	"go-inventory-offline/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	day := time.Date(2026, 3, 7, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, "sunshine_backup_2026-03-07.json", FileName(day))
}

func TestEncodeDecode(t *testing.T) {
	size := "M"
	doc := &Document{
		Users:        []model.User{{ID: 1, Username: "sunshine", Password: "hash", Role: model.RoleAdmin}},
		Categories:   []model.Category{{ID: 1, Name: model.CategoryUniform}},
		Products:     []model.Product{{ID: 3, CategoryID: 1, Name: "T-Shirt"}},
		Stock:        []model.Stock{{ID: 9, ProductID: 3, Size: &size, Quantity: 13}},
		Transactions: []model.Transaction{},
	}
	data, err := Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"users\"")

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Users, got.Users)
	assert.Equal(t, doc.Stock, got.Stock)
	assert.Equal(t, 1, got.Counts()[TableProducts])
}

func TestDecodeRejects(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		missing []string
		reason  string
	}{
		{"not an object", `[1,2]`, nil, "not a JSON object"},
		{"missing stock", `{"users": [], "transactions": []}`, []string{"stock"}, ""},
		{"null counts as missing", `{"users": null, "stock": [], "transactions": []}`, []string{"users"}, ""},
		{"unknown table", `{"users": [], "stock": [], "transactions": [], "inventory": []}`, nil, "unknown tables"},
		{"unknown column", `{"users": [], "stock": [{"id": 1, "colour": "red"}], "transactions": []}`, nil, "table stock"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode([]byte(c.doc))
			var ive *apperr.ImportValidationError
			require.True(t, errors.As(err, &ive), "got %v", err)
			assert.Equal(t, c.missing, ive.Missing)
			if c.reason != "" {
				assert.Contains(t, ive.Reason, c.reason)
			}
		})
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir() + "/backups")

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Save(ctx, "sunshine_backup_2026-01-01.json", []byte(`{"a":1}`)))
	require.NoError(t, store.Save(ctx, "sunshine_backup_2026-02-01.json", []byte(`{"a":2}`)))

	data, err := store.Load(ctx, "sunshine_backup_2026-01-01.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sunshine_backup_2026-02-01.json", "sunshine_backup_2026-01-01.json"}, names)

	_, err = store.Load(ctx, "missing.json")
	assert.ErrorIs(t, err, ErrNotExist)

	assert.Error(t, store.Save(ctx, "../escape.json", nil))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "bucket", "/backups/")

	require.NoError(t, store.Save(ctx, "sunshine_backup_2026-01-01.json", []byte("one")))
	require.NoError(t, store.Save(ctx, "sunshine_backup_2026-01-02.json", []byte("two")))
	_, ok := fake.objects["backups/sunshine_backup_2026-01-01.json"]
	assert.True(t, ok)

	data, err := store.Load(ctx, "sunshine_backup_2026-01-02.json")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sunshine_backup_2026-01-02.json", "sunshine_backup_2026-01-01.json"}, names)

	_, err = store.Load(ctx, "nope.json")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Options{Region: "auto"})
	assert.Error(t, err)
}
