package uploader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]string
	failures int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}

func writeTranscript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testUploader(client Client, prefix string) *Uploader {
	u := NewWithClient(Config{Bucket: "transcripts", Prefix: prefix}, client)
	u.retryDelay = time.Millisecond
	return u
}

func TestRunUploadsAndRemoves(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "transcript-20260831-120000-001.jsonl", `{"text":"hi"}`+"\n")

	fake := newFakeS3()
	u := testUploader(fake, "streams")

	files := make(chan string, 1)
	files <- path
	close(files)

	u.Run(context.Background(), files)

	assert.Equal(t, []string{"streams/transcript-20260831-120000-001.jsonl"}, fake.keys())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestUploadRetriesTransientFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "transcript-a.jsonl", "{}\n")

	fake := newFakeS3()
	fake.failures = 2
	u := testUploader(fake, "")

	require.NoError(t, u.uploadWithRetry(context.Background(), path))
	assert.Len(t, fake.keys(), 1)
}

func TestUploadGivesUpAfterAttempts(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "transcript-b.jsonl", "{}\n")

	fake := newFakeS3()
	fake.failures = 10
	u := testUploader(fake, "")

	assert.Error(t, u.uploadWithRetry(context.Background(), path))

	// The file survives for the next session to pick up.
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestScanExistingUploadsLeftovers(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "transcript-20260830-090000-001.jsonl", "{}\n")
	writeTranscript(t, dir, "transcript-20260830-091500-002.jsonl", "{}\n")
	writeTranscript(t, dir, "notes.txt", "ignore me")

	fake := newFakeS3()
	u := testUploader(fake, "")

	require.NoError(t, u.ScanExisting(context.Background(), dir))
	assert.Len(t, fake.keys(), 2)

	leftovers, err := filepath.Glob(filepath.Join(dir, "transcript-*.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
