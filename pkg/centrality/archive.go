package centrality

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/golang/snappy"
)

var (
	// ErrNoArchivedSnapshot is returned by LoadLatest when nothing was saved yet.
	ErrNoArchivedSnapshot = errors.New("no archived snapshot")
	// ErrCorruptSnapshot is returned when an archived blob fails its checksum.
	ErrCorruptSnapshot = errors.New("archived snapshot checksum mismatch")
)

// Archive persists published snapshots so a restart can serve the last known
// features before the first batch completes.
type Archive interface {
	Save(ctx context.Context, snap *Snapshot) error
	LoadLatest(ctx context.Context) (*Snapshot, error)
}

// EncodeSnapshot serialises a snapshot as snappy-compressed JSON followed by a
// big-endian CRC32 of the compressed payload.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	compressed := snappy.Encode(nil, raw)

	out := make([]byte, len(compressed)+4)
	copy(out, compressed)
	binary.BigEndian.PutUint32(out[len(compressed):], crc32.ChecksumIEEE(compressed))
	return out, nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) < 4 {
		return nil, ErrCorruptSnapshot
	}
	payload, footer := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(footer) {
		return nil, ErrCorruptSnapshot
	}

	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// FileArchive keeps snapshots in a local directory. Every version is written
// to its own file and latest.bin is replaced atomically.
type FileArchive struct {
	dir string
}

const latestFile = "latest.bin"

// NewFileArchive creates dir if needed.
func NewFileArchive(dir string) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileArchive{dir: dir}, nil
}

func (a *FileArchive) Save(_ context.Context, snap *Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	versioned := filepath.Join(a.dir, fmt.Sprintf("snapshot-%020d.bin", snap.Version))
	if err := os.WriteFile(versioned, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	tmp := filepath.Join(a.dir, latestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(a.dir, latestFile)); err != nil {
		return fmt.Errorf("promote snapshot: %w", err)
	}
	return nil
}

func (a *FileArchive) LoadLatest(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, latestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoArchivedSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// s3API is the subset of *s3.Client used by S3Archive.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures an S3Archive. Endpoint and static credentials are
// optional and mostly used with S3-compatible stores such as MinIO.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Archive stores snapshots as objects under Prefix.
type S3Archive struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Archive builds an S3 client from the default AWS credential chain,
// overridden by static keys when both are set.
func NewS3Archive(ctx context.Context, opts S3Options) (*S3Archive, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 archive: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archive(client, opts.Bucket, opts.Prefix), nil
}

func newS3Archive(client s3API, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

func (a *S3Archive) key(name string) string {
	if a.prefix == "" {
		return name
	}
	return a.prefix + "/" + name
}

func (a *S3Archive) Save(ctx context.Context, snap *Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	for _, name := range []string{fmt.Sprintf("snapshot-%020d.bin", snap.Version), latestFile} {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(a.key(name)),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/octet-stream"),
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", name, err)
		}
	}
	return nil
}

func (a *S3Archive) LoadLatest(ctx context.Context) (*Snapshot, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(latestFile)),
	})
	if err != nil {
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrNoArchivedSnapshot
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}
