package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string]string
	calls   int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestFetchLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bursts.tsv")
	os.WriteFile(path, []byte("hello"), 0o644)

	data, err := NewFetcherWithClient(&fakeS3{}).Fetch(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected 'hello', got %q", data)
	}
}

func TestFetchLocalMissing(t *testing.T) {
	_, err := NewFetcherWithClient(&fakeS3{}).Fetch(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFetchS3(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"bursts/2013/top.tsv": "Timestamp\tLABEL\tRANK\n"}}

	data, err := NewFetcherWithClient(fake).Fetch(context.Background(), "s3://bursts/2013/top.tsv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(data), "Timestamp") {
		t.Errorf("unexpected body %q", data)
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 GetObject call, got %d", fake.calls)
	}
}

func TestFetchS3Missing(t *testing.T) {
	_, err := NewFetcherWithClient(&fakeS3{}).Fetch(context.Background(), "s3://bursts/none.tsv")
	if err == nil {
		t.Error("expected error for missing object")
	}
}

func TestParseS3(t *testing.T) {
	bucket, key, err := ParseS3("s3://data/annotations/top.tsv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "data" || key != "annotations/top.tsv" {
		t.Errorf("unexpected split %q %q", bucket, key)
	}

	for _, bad := range []string{"s3://bucket", "s3:///key", "s3://bucket/"} {
		if _, _, err := ParseS3(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
