package lists

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // local directories
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/memblob"  // in-process buckets
	_ "gocloud.dev/blob/s3blob"   // S3 driver
	"gocloud.dev/gcerrors"
)

const listSuffix = ".json.zst"

// BlobStore keeps one zstd-compressed JSON object per list in a bucket.
// Listing by owner scans the prefix, which is fine for personal collections.
type BlobStore struct {
	bucket *blob.Bucket
	prefix string

	enc *zstd.Encoder
	dec *zstd.Decoder

	// serializes existence checks with writes
	mu sync.Mutex
}

// OpenBlobStore opens bucketURL through the gocloud URL mux, e.g. mem://,
// file:///var/lib/listsorter, gs://bucket or s3://bucket?region=eu-west-1.
func OpenBlobStore(ctx context.Context, bucketURL, prefix string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return NewBlobStore(bucket, prefix)
}

// NewBlobStore wraps an open bucket. The store owns it and closes it.
func NewBlobStore(bucket *blob.Bucket, prefix string) (*BlobStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &BlobStore{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		enc:    enc,
		dec:    dec,
	}, nil
}

func (s *BlobStore) Close() error {
	s.dec.Close()
	if err := s.enc.Close(); err != nil {
		s.bucket.Close()
		return fmt.Errorf("close zstd encoder: %w", err)
	}
	return s.bucket.Close()
}

func (s *BlobStore) keyPrefix() string {
	return path.Join(s.prefix, "lists") + "/"
}

func (s *BlobStore) key(id string) string {
	return s.keyPrefix() + id + listSuffix
}

func (s *BlobStore) Create(ctx context.Context, l *SavedList) error {
	if err := l.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.bucket.Exists(ctx, s.key(l.ID))
	if err != nil {
		return fmt.Errorf("check %s: %w", s.key(l.ID), err)
	}
	if exists {
		return fmt.Errorf("%w: id %s already exists", ErrInvalidList, l.ID)
	}
	return s.write(ctx, l)
}

func (s *BlobStore) Update(ctx context.Context, l *SavedList) error {
	if err := l.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.bucket.Exists(ctx, s.key(l.ID))
	if err != nil {
		return fmt.Errorf("check %s: %w", s.key(l.ID), err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, l.ID)
	}
	return s.write(ctx, l)
}

func (s *BlobStore) write(ctx context.Context, l *SavedList) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal list %s: %w", l.ID, err)
	}
	compressed := s.enc.EncodeAll(data, nil)

	key := s.key(l.ID)
	w, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: "application/zstd"})
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(compressed); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, id string) (*SavedList, error) {
	return s.read(ctx, s.key(id), id)
}

func (s *BlobStore) read(ctx context.Context, key, id string) (*SavedList, error) {
	compressed, err := s.bucket.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress %s: %w", key, err)
	}

	var l SavedList
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &l, nil
}

func (s *BlobStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.bucket.Delete(ctx, s.key(id))
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.key(id), err)
	}
	return nil
}

func (s *BlobStore) ListByOwner(ctx context.Context, owner string) ([]*SavedList, error) {
	iter := s.bucket.List(&blob.ListOptions{Prefix: s.keyPrefix()})

	var out []*SavedList
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", s.keyPrefix(), err)
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, listSuffix) {
			continue
		}

		id := strings.TrimSuffix(path.Base(obj.Key), listSuffix)
		l, err := s.read(ctx, obj.Key, id)
		if errors.Is(err, ErrNotFound) {
			// deleted while listing
			continue
		}
		if err != nil {
			return nil, err
		}
		if l.OwnerID == owner {
			out = append(out, l)
		}
	}

	newestFirst(out)
	return out, nil
}
