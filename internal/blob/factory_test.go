package blob

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()

	root := filepath.Join(t.TempDir(), "artifacts")
	t.Setenv(EnvDriver, "")
	t.Setenv(EnvFSRoot, root)
	s, err := Open(ctx)
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("expected filesystem default, got %v %v", s, err)
	}

	t.Setenv(EnvDriver, " MEMORY ")
	s, err = Open(ctx)
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %v %v", s, err)
	}

	t.Setenv(EnvDriver, "s3")
	t.Setenv("FLOWPANEL_BLOB_S3_BUCKET", "")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected missing bucket error")
	}

	t.Setenv(EnvDriver, "tape")
	if _, err := Open(ctx); err == nil || !strings.Contains(err.Error(), "unknown blob driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestOpenConfigS3(t *testing.T) {
	s, err := OpenConfig(context.Background(), Config{Driver: DriverS3, S3: S3Config{Bucket: "exports", AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}})
	if err != nil || s.Driver() != DriverS3 {
		t.Fatalf("expected s3 store, got %v %v", s, err)
	}
	if _, err := OpenConfig(context.Background(), Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestBackendsShareContract(t *testing.T) {
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, s := range []Store{NewMemory(), fsStore, NewMockS3ForTests()} {
		t.Run(string(s.Driver()), func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.Put(ctx, "p/1/plan.csv", strings.NewReader("a,b"), PutOptions{ContentType: "text/csv"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := s.Put(ctx, "p/1/plan.csv", strings.NewReader("a,b"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			if _, err := s.Head(ctx, "p/1/missing.csv"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			list, err := s.List(ctx, "p/")
			if err != nil || len(list) != 1 || list[0].Size != 3 {
				t.Fatalf("unexpected list %+v %v", list, err)
			}
		})
	}
}
