//go:build integration

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
	testBucket    = "imagery"
)

// startMinio starts a MinIO container and creates the test bucket.
func startMinio(t *testing.T, ctx context.Context) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     testAccessKey,
			"MINIO_ROOT_PASSWORD": testSecretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	endpoint := fmt.Sprintf("%s:%s", host, port.Port())

	admin, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(testAccessKey, testSecretKey, ""),
	})
	if err != nil {
		t.Fatalf("create admin client: %v", err)
	}
	if err := admin.MakeBucket(ctx, testBucket, minio.MakeBucketOptions{}); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	return "http://" + endpoint
}

func TestIntegration_MinioStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	endpoint := startMinio(t, ctx)

	store, err := NewMinioStore(ctx, Config{
		Endpoint:  endpoint,
		AccessKey: testAccessKey,
		SecretKey: testSecretKey,
		Bucket:    testBucket,
		Prefix:    "sentinel/",
	})
	if err != nil {
		t.Fatalf("NewMinioStore() failed: %v", err)
	}

	staged := filepath.Join(t.TempDir(), "B02.jp2")
	if err := os.WriteFile(staged, []byte("raster-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := store.Put(ctx, "B02.jp2", staged); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	// Read the object back with a raw client.
	client, err := minio.New(endpoint[len("http://"):], &minio.Options{
		Creds: credentials.NewStaticV4(testAccessKey, testSecretKey, ""),
	})
	if err != nil {
		t.Fatalf("create verify client: %v", err)
	}

	obj, err := client.GetObject(ctx, testBucket, "sentinel/B02.jp2", minio.GetObjectOptions{})
	if err != nil {
		t.Fatalf("GetObject() failed: %v", err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(content) != "raster-bytes" {
		t.Errorf("object content = %q, want raster-bytes", content)
	}

	stat, err := obj.Stat()
	if err != nil {
		t.Fatalf("stat object: %v", err)
	}
	if stat.ContentType != "image/jp2" {
		t.Errorf("ContentType = %q, want image/jp2", stat.ContentType)
	}

	// A second put of the same name overwrites, never duplicates.
	if err := os.WriteFile(staged, []byte("raster-v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "B02.jp2", staged); err != nil {
		t.Fatalf("second Put() failed: %v", err)
	}

	obj2, err := client.GetObject(ctx, testBucket, "sentinel/B02.jp2", minio.GetObjectOptions{})
	if err != nil {
		t.Fatalf("GetObject() after overwrite failed: %v", err)
	}
	defer obj2.Close()
	content2, err := io.ReadAll(obj2)
	if err != nil {
		t.Fatalf("read overwritten object: %v", err)
	}
	if string(content2) != "raster-v2" {
		t.Errorf("overwritten content = %q, want raster-v2", content2)
	}
}

func TestIntegration_MinioStore_MissingBucket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	endpoint := startMinio(t, ctx)

	_, err := NewMinioStore(ctx, Config{
		Endpoint:  endpoint,
		AccessKey: testAccessKey,
		SecretKey: testSecretKey,
		Bucket:    "does-not-exist",
	})
	if err == nil {
		t.Fatal("NewMinioStore() should fail for a missing bucket")
	}
}
