package centrality

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func sampleSnapshot(version uint64) *Snapshot {
	computed := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)
	return &Snapshot{
		Version:         version,
		TopologyVersion: 4,
		ComputedAt:      computed,
		Duration:        1500 * time.Millisecond,
		ComponentSize:   2,
		Method:          MethodExact,
		Features: map[string]Features{
			"SUB-1": {NodeID: "SUB-1", BetweennessCentrality: 0.906, CascadeRiskScore: 0.95, Exact: true, Method: MethodExact, ComputedAt: computed},
			"TX-1":  {NodeID: "TX-1", CascadeRiskScore: 0.4, Hop1: 1, TotalReach: 1, Exact: true, Method: MethodExact, ComputedAt: computed},
		},
	}
}

func assertSameSnapshot(t *testing.T, got, want *Snapshot) {
	t.Helper()
	if got.Version != want.Version || got.TopologyVersion != want.TopologyVersion {
		t.Errorf("versions = %d/%d, want %d/%d", got.Version, got.TopologyVersion, want.Version, want.TopologyVersion)
	}
	if !got.ComputedAt.Equal(want.ComputedAt) || got.Duration != want.Duration {
		t.Errorf("timing = %v/%v, want %v/%v", got.ComputedAt, got.Duration, want.ComputedAt, want.Duration)
	}
	if got.Len() != want.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), want.Len())
	}
	for id, wf := range want.Features {
		gf, ok := got.Get(id)
		if !ok {
			t.Errorf("missing %s", id)
			continue
		}
		if gf.CascadeRiskScore != wf.CascadeRiskScore || gf.BetweennessCentrality != wf.BetweennessCentrality || gf.Method != wf.Method {
			t.Errorf("%s = %+v, want %+v", id, gf, wf)
		}
	}
}

func TestEncodeDecodeSnapshot(t *testing.T) {
	want := sampleSnapshot(3)
	data, err := EncodeSnapshot(want)
	if err != nil {
		t.Fatalf("EncodeSnapshot() error = %v", err)
	}

	got, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	assertSameSnapshot(t, got, want)
}

func TestDecodeSnapshotDetectsCorruption(t *testing.T) {
	data, err := EncodeSnapshot(sampleSnapshot(1))
	if err != nil {
		t.Fatalf("EncodeSnapshot() error = %v", err)
	}

	data[len(data)/2] ^= 0xFF
	if _, err := DecodeSnapshot(data); !errors.Is(err, ErrCorruptSnapshot) {
		t.Errorf("DecodeSnapshot(corrupt) error = %v, want ErrCorruptSnapshot", err)
	}
	if _, err := DecodeSnapshot([]byte{1, 2}); !errors.Is(err, ErrCorruptSnapshot) {
		t.Errorf("DecodeSnapshot(short) error = %v, want ErrCorruptSnapshot", err)
	}
}

func TestFileArchive(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileArchive(filepath.Join(dir, "snapshots"))
	if err != nil {
		t.Fatalf("NewFileArchive() error = %v", err)
	}
	ctx := context.Background()

	if _, err := a.LoadLatest(ctx); !errors.Is(err, ErrNoArchivedSnapshot) {
		t.Fatalf("LoadLatest() on empty archive error = %v, want ErrNoArchivedSnapshot", err)
	}

	if err := a.Save(ctx, sampleSnapshot(1)); err != nil {
		t.Fatalf("Save(v1) error = %v", err)
	}
	want := sampleSnapshot(2)
	if err := a.Save(ctx, want); err != nil {
		t.Fatalf("Save(v2) error = %v", err)
	}

	got, err := a.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	assertSameSnapshot(t, got, want)

	versioned, _ := filepath.Glob(filepath.Join(dir, "snapshots", "snapshot-*.bin"))
	if len(versioned) != 2 {
		t.Errorf("versioned files = %d, want 2", len(versioned))
	}
	if _, err := os.Stat(filepath.Join(dir, "snapshots", latestFile+".tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[*in.Bucket+"/"+*in.Key] = body
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	f.mu.Unlock()
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestS3Archive(t *testing.T) {
	client := newFakeS3()
	a := newS3Archive(client, "grid-risk", "snapshots/prod")
	ctx := context.Background()

	if _, err := a.LoadLatest(ctx); !errors.Is(err, ErrNoArchivedSnapshot) {
		t.Fatalf("LoadLatest() on empty bucket error = %v, want ErrNoArchivedSnapshot", err)
	}

	want := sampleSnapshot(7)
	if err := a.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for _, key := range []string{
		"grid-risk/snapshots/prod/latest.bin",
		"grid-risk/snapshots/prod/snapshot-00000000000000000007.bin",
	} {
		if _, ok := client.objects[key]; !ok {
			t.Errorf("object %s not written", key)
		}
	}

	got, err := a.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	assertSameSnapshot(t, got, want)
}

func TestS3ArchiveSaveError(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("access denied")

	err := newS3Archive(client, "grid-risk", "").Save(context.Background(), sampleSnapshot(1))
	if err == nil || !errors.Is(err, client.putErr) {
		t.Errorf("Save() error = %v, want wrapped access denied", err)
	}
}

func TestNewS3ArchiveRequiresBucket(t *testing.T) {
	if _, err := NewS3Archive(context.Background(), S3Options{}); err == nil {
		t.Error("NewS3Archive() without bucket should fail")
	}
}
