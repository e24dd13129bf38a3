package s3

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittotasks/pkg/store"
	storetesting "github.com/marmos91/dittotasks/pkg/store/testing"
)

// fakeClient is an in-memory bucket.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

type fakeObject struct {
	data     []byte
	metadata map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string]fakeObject)}
}

func (f *fakeClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = fakeObject{data: data, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.data)),
		Metadata: obj.metadata,
	}, nil
}

func TestS3Backend(t *testing.T) {
	suite := &storetesting.BackendTestSuite{
		NewBackend: func(t *testing.T) store.Backend {
			return NewWithClient(newFakeClient(), "bucket", "tasks/")
		},
		SkipClose: true,
	}
	suite.Run(t)
}

func TestS3BackendKeyLayout(t *testing.T) {
	client := newFakeClient()
	s := NewWithClient(client, "bucket", "prod/")
	assert.Equal(t, "prod/database.bin", s.Key())

	require.NoError(t, s.Save(context.Background(), store.Snapshot{Data: []byte("x")}))
	_, ok := client.objects["bucket/prod/database.bin"]
	assert.True(t, ok)
}

func TestS3BackendMissingMetadata(t *testing.T) {
	client := newFakeClient()
	client.objects["bucket/database.bin"] = fakeObject{data: []byte("x")}

	_, err := NewWithClient(client, "bucket", "").Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = New(context.Background(), Config{Bucket: "b"})
	assert.Error(t, err)
}
