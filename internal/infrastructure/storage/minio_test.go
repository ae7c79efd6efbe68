package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/transcriptapi/core/internal/domain/repository"
)

// mockObjectReader implements objectReader interface for testing.
type mockObjectReader struct {
	readFunc func(p []byte) (n int, err error)
	statFunc func() (minio.ObjectInfo, error)
	data     []byte
	offset   int
}

func (m *mockObjectReader) Read(p []byte) (n int, err error) {
	if m.readFunc != nil {
		return m.readFunc(p)
	}
	if m.offset >= len(m.data) {
		return 0, io.EOF
	}
	n = copy(p, m.data[m.offset:])
	m.offset += n
	return n, nil
}

func (m *mockObjectReader) Close() error { return nil }

func (m *mockObjectReader) Stat() (minio.ObjectInfo, error) {
	if m.statFunc != nil {
		return m.statFunc()
	}
	return minio.ObjectInfo{}, nil
}

// mockMinioClient implements minioClient interface for testing.
type mockMinioClient struct {
	bucketExistsFunc func(ctx context.Context, bucketName string) (bool, error)
	putObjectFunc    func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	getObjectFunc    func(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error)
	removeObjectFunc func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

func (m *mockMinioClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if m.bucketExistsFunc != nil {
		return m.bucketExistsFunc(ctx, bucketName)
	}
	return true, nil
}

func (m *mockMinioClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, bucketName, objectName, reader, objectSize, opts)
	}
	return minio.UploadInfo{}, nil
}

func (m *mockMinioClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
	if m.getObjectFunc != nil {
		return m.getObjectFunc(ctx, bucketName, objectName, opts)
	}
	return nil, nil
}

func (m *mockMinioClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	if m.removeObjectFunc != nil {
		return m.removeObjectFunc(ctx, bucketName, objectName, opts)
	}
	return nil
}

func TestNewClientWithMinioClient(t *testing.T) {
	tests := []struct {
		name       string
		bucket     string
		mockClient *mockMinioClient
		wantErr    error
	}{
		{
			name:   "successful initialization",
			bucket: "test-bucket",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return true, nil
				},
			},
			wantErr: nil,
		},
		{
			name:   "bucket does not exist",
			bucket: "non-existent-bucket",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, nil
				},
			},
			wantErr: repository.ErrObjectNotFound,
		},
		{
			name:   "bucket check error",
			bucket: "test-bucket",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, errors.New("connection refused")
				},
			},
			wantErr: errors.New("failed to check bucket existence"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newClientWithMinioClient(context.Background(), tt.mockClient, tt.bucket)

			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("newClientWithMinioClient() expected error, got nil")
					return
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Errorf("newClientWithMinioClient() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("newClientWithMinioClient() unexpected error = %v", err)
				return
			}

			if client.bucket != tt.bucket {
				t.Errorf("client.bucket = %v, want %v", client.bucket, tt.bucket)
			}
		})
	}
}

func TestRawArchiveClient_Put(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		content     string
		contentType string
		mockClient  *mockMinioClient
		wantErr     bool
	}{
		{
			name:        "successful put",
			key:         "raw/dQw4w9WgXcQ:en:true/job-1.bin",
			content:     "raw transcript payload",
			contentType: "application/octet-stream",
			mockClient: &mockMinioClient{
				putObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
					if opts.ContentType != "application/octet-stream" {
						t.Errorf("expected content type application/octet-stream, got %s", opts.ContentType)
					}
					return minio.UploadInfo{Bucket: bucketName, Key: objectName}, nil
				},
			},
			wantErr: false,
		},
		{
			name:        "put error",
			key:         "raw/dQw4w9WgXcQ:en:true/job-1.bin",
			content:     "raw transcript payload",
			contentType: "application/octet-stream",
			mockClient: &mockMinioClient{
				putObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
					return minio.UploadInfo{}, errors.New("upload failed")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &RawArchiveClient{client: tt.mockClient, bucket: "raw-transcripts"}

			reader := bytes.NewReader([]byte(tt.content))
			err := client.Put(context.Background(), tt.key, reader, tt.contentType)

			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRawArchiveClient_Get(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		mockClient  *mockMinioClient
		wantContent string
		wantErr     error
	}{
		{
			name: "successful get",
			key:  "raw/dQw4w9WgXcQ:en:true/job-1.bin",
			mockClient: &mockMinioClient{
				getObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
					return &mockObjectReader{
						data: []byte("raw transcript payload"),
						statFunc: func() (minio.ObjectInfo, error) {
							return minio.ObjectInfo{Key: objectName, Size: 23}, nil
						},
					}, nil
				},
			},
			wantContent: "raw transcript payload",
			wantErr:     nil,
		},
		{
			name: "object not found",
			key:  "raw/missing/job-1.bin",
			mockClient: &mockMinioClient{
				getObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
					return &mockObjectReader{
						statFunc: func() (minio.ObjectInfo, error) {
							return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}
						},
					}, nil
				},
			},
			wantContent: "",
			wantErr:     repository.ErrObjectNotFound,
		},
		{
			name: "get object error",
			key:  "raw/dQw4w9WgXcQ:en:true/job-1.bin",
			mockClient: &mockMinioClient{
				getObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
					return nil, errors.New("connection refused")
				},
			},
			wantContent: "",
			wantErr:     errors.New("failed to get raw payload"),
		},
		{
			name: "stat error",
			key:  "raw/dQw4w9WgXcQ:en:true/job-1.bin",
			mockClient: &mockMinioClient{
				getObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
					return &mockObjectReader{
						statFunc: func() (minio.ObjectInfo, error) {
							return minio.ObjectInfo{}, errors.New("stat failed")
						},
					}, nil
				},
			},
			wantContent: "",
			wantErr:     errors.New("failed to stat raw payload"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &RawArchiveClient{client: tt.mockClient, bucket: "raw-transcripts"}

			reader, err := client.Get(context.Background(), tt.key)

			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("Get() expected error, got nil")
					return
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Errorf("Get() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("Get() unexpected error = %v", err)
				return
			}

			defer reader.Close()

			content, err := io.ReadAll(reader)
			if err != nil {
				t.Errorf("failed to read content: %v", err)
				return
			}

			if string(content) != tt.wantContent {
				t.Errorf("Get() content = %v, want %v", string(content), tt.wantContent)
			}
		})
	}
}

func TestRawArchiveClient_Delete(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		mockClient *mockMinioClient
		wantErr    bool
	}{
		{
			name: "successful delete",
			key:  "raw/dQw4w9WgXcQ:en:true/job-1.bin",
			mockClient: &mockMinioClient{
				removeObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
					return nil
				},
			},
			wantErr: false,
		},
		{
			name: "delete error",
			key:  "raw/dQw4w9WgXcQ:en:true/job-1.bin",
			mockClient: &mockMinioClient{
				removeObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
					return errors.New("delete failed")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &RawArchiveClient{client: tt.mockClient, bucket: "raw-transcripts"}

			err := client.Delete(context.Background(), tt.key)

			if (err != nil) != tt.wantErr {
				t.Errorf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRawArchiveClient_Ping(t *testing.T) {
	tests := []struct {
		name       string
		mockClient *mockMinioClient
		wantErr    bool
	}{
		{
			name: "successful ping",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return true, nil
				},
			},
			wantErr: false,
		},
		{
			name: "ping error",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, errors.New("connection refused")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &RawArchiveClient{client: tt.mockClient, bucket: "raw-transcripts"}

			err := client.Ping(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("Ping() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRawArchiveKey(t *testing.T) {
	got := RawArchiveKey("dQw4w9WgXcQ:en:true", "job-1")
	want := "raw/dQw4w9WgXcQ:en:true/job-1.bin"
	if got != want {
		t.Errorf("RawArchiveKey() = %v, want %v", got, want)
	}
}
