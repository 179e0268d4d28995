package s3bucket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/miscutils"
)

// mockS3Client keeps objects in memory
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	err     error
	// failing makes the next calls return a throttling error.
	failing int
	calls   int
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

// fail is called with mu held.
func (m *mockS3Client) fail() error {
	m.calls++
	if m.failing > 0 {
		m.failing--
		return &smithy.GenericAPIError{Code: "SlowDown", Message: "Please reduce your request rate.", Fault: smithy.FaultServer}
	}
	return m.err
}

func objectKey(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	data, ok := m.objects[objectKey(params.Bucket, params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[objectKey(params.Bucket, params.Key)] = data
	m.puts = append(m.puts, params)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	delete(m.objects, objectKey(params.Bucket, params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestStore_ReadWrite(t *testing.T) {
	ctx := context.Background()
	client := newMockS3Client()

	store, err := New(client, "bucket", "graphs/state.pkl", WithServerSideEncryption(types.ServerSideEncryptionAes256))
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/graphs/state.pkl", store.URI())

	data, err := store.ReadBytes(ctx)
	require.NoError(t, err)
	assert.Nil(t, data, "a missing object reads as empty")

	require.NoError(t, store.WriteBytes(ctx, []byte("payload")))
	data, err = store.ReadBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "application/octet-stream", aws.ToString(put.ContentType))
	assert.Equal(t, int64(7), aws.ToInt64(put.ContentLength))
	assert.Equal(t, types.ServerSideEncryptionAes256, put.ServerSideEncryption)

	require.NoError(t, store.Delete(ctx))
	data, err = store.ReadBytes(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	client := newMockS3Client()
	client.err = errors.New("access denied")

	store, err := New(client, "bucket", "key")
	require.NoError(t, err)

	_, err = store.ReadBytes(ctx)
	assert.True(t, miscutils.IsStorageError(err))
	assert.True(t, miscutils.IsStorageError(store.WriteBytes(ctx, []byte("x"))))
	assert.True(t, miscutils.IsStorageError(store.Delete(ctx)))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "bucket", "key")
	assert.ErrorIs(t, err, miscutils.ErrNilStore)

	_, err = New(newMockS3Client(), "", "key")
	assert.True(t, miscutils.IsConfigurationError(err))

	_, err = New(newMockS3Client(), "bucket", "")
	assert.True(t, miscutils.IsConfigurationError(err))
}

func TestStore_Serializer(t *testing.T) {
	ctx := context.Background()
	client := newMockS3Client()
	store, err := New(client, "bucket", "state", WithContentType("application/x-python-pickle"))
	require.NoError(t, err)

	s, err := miscutils.NewSerializer(store)
	require.NoError(t, err)

	v, err := s.Deserialize(ctx)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = s.Serialize(ctx, []any{"a", 1})
	require.NoError(t, err)
	v, err = s.Deserialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 1}, v)
	assert.Equal(t, "application/x-python-pickle", aws.ToString(client.puts[0].ContentType))
}

func TestStore_GenericNotFound(t *testing.T) {
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(fmt.Errorf("operation error S3: GetObject: %w", &smithy.GenericAPIError{Code: "NotFound"})))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(nil))
}

func TestStore_ReliableStore(t *testing.T) {
	ctx := context.Background()
	client := newMockS3Client()
	bucket, err := New(client, "bucket", "state")
	require.NoError(t, err)
	store, err := miscutils.NewReliableStore(bucket, miscutils.WithRetries(3, 0), miscutils.WithStoreName(bucket.URI()))
	require.NoError(t, err)

	s, err := miscutils.NewSerializer(store)
	require.NoError(t, err)

	client.mu.Lock()
	client.failing = 2
	client.mu.Unlock()
	_, err = s.Serialize(ctx, map[string]any{"k": "v"})
	require.NoError(t, err)

	client.mu.Lock()
	client.failing = 3
	client.mu.Unlock()
	_, err = s.Deserialize(ctx)
	assert.True(t, miscutils.IsStorageError(err), "three throttled reads exhaust the retries")

	v, err := s.Deserialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, v)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, 7, client.calls)
}
