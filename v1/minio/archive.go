package minio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"

	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
)

const archiveContentType = "application/zstd"

// ArchivedFailure is one line of a failure archive.
type ArchivedFailure struct {
	RunID      string               `json:"run_id"`
	ID         string               `json:"id,omitempty"`
	Kind       transfer.FailureKind `json:"kind"`
	Reason     string               `json:"reason"`
	Properties map[string]any       `json:"properties,omitempty"`
	Vectors    map[string][]float32 `json:"vectors,omitempty"`
}

// Record returns the failed record, ready to be transferred again.
func (f ArchivedFailure) Record() transfer.Record {
	return transfer.Record{ID: f.ID, Properties: f.Properties, Vectors: f.Vectors}
}

// ArchiveKey returns the object key under which the failures of runID are stored.
func (m *MinioClient) ArchiveKey(runID string) string {
	return path.Join(m.cfg.Prefix, runID+".jsonl.zst")
}

// ArchiveFailures uploads the retryable failures of res. It returns "" without
// writing when there is nothing to archive.
func (m *MinioClient) ArchiveFailures(ctx context.Context, res *transfer.Result) (key string, err error) {
	start := time.Now()
	key = m.ArchiveKey(res.RunID)
	var size int64
	defer func() {
		m.observeOperation("archive_failures", key, time.Since(start), err, size, map[string]interface{}{
			"run_id": res.RunID,
		})
	}()

	var buf bytes.Buffer
	n, err := EncodeFailures(&buf, res, zstd.WithEncoderLevel(m.level))
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	size = int64(buf.Len())

	c := m.client.Load()
	if c == nil {
		return "", ErrConnectionFailed
	}
	_, err = c.PutObject(ctx, m.cfg.Connection.BucketName, key, &buf, size, minio.PutObjectOptions{
		ContentType: archiveContentType,
		UserMetadata: map[string]string{
			"run-id":   res.RunID,
			"status":   string(res.Status),
			"failures": fmt.Sprint(n),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload failure archive %s: %w", key, translateError(err))
	}

	m.logInfo(ctx, "Archived transfer failures", map[string]interface{}{
		"bucket":   m.cfg.Connection.BucketName,
		"key":      key,
		"failures": n,
	})
	return key, nil
}

// LoadFailures downloads and decodes the archive stored under key.
func (m *MinioClient) LoadFailures(ctx context.Context, key string) (failures []ArchivedFailure, err error) {
	start := time.Now()
	defer func() {
		m.observeOperation("load_failures", key, time.Since(start), err, int64(len(failures)), nil)
	}()

	c := m.client.Load()
	if c == nil {
		return nil, ErrConnectionFailed
	}
	obj, err := c.GetObject(ctx, m.cfg.Connection.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download failure archive %s: %w", key, translateError(err))
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return nil, fmt.Errorf("stat failure archive %s: %w", key, translateError(err))
	}
	failures, err = DecodeFailures(obj)
	if err != nil {
		return nil, fmt.Errorf("decode failure archive %s: %w", key, err)
	}
	return failures, nil
}

// RetrySource returns a source over the records archived under key.
func (m *MinioClient) RetrySource(ctx context.Context, key string) (*transfer.SliceSource, error) {
	failures, err := m.LoadFailures(ctx, key)
	if err != nil {
		return nil, err
	}
	records := make([]transfer.Record, 0, len(failures))
	for _, f := range failures {
		records = append(records, f.Record())
	}
	return transfer.NewSliceSource(records), nil
}

// EncodeFailures writes the retryable failures of res to w as zstd-compressed JSON
// lines and returns how many were written. Fatal entries are skipped.
func EncodeFailures(w io.Writer, res *transfer.Result, opts ...zstd.EOption) (int, error) {
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return 0, fmt.Errorf("create zstd encoder: %w", err)
	}

	jsonEnc := json.NewEncoder(enc)
	n := 0
	for _, f := range res.Failures {
		if f.Kind == transfer.KindFatal {
			continue
		}
		line := ArchivedFailure{
			RunID:      res.RunID,
			ID:         f.Record.ID,
			Kind:       f.Kind,
			Reason:     f.Reason(),
			Properties: f.Record.Properties,
			Vectors:    f.Record.Vectors,
		}
		if err := jsonEnc.Encode(line); err != nil {
			_ = enc.Close()
			return n, fmt.Errorf("encode failure %q: %w", f.Record.ID, err)
		}
		n++
	}
	if err := enc.Close(); err != nil {
		return n, fmt.Errorf("flush zstd encoder: %w", err)
	}
	return n, nil
}

// DecodeFailures reads an archive produced by EncodeFailures. Numeric properties come
// back as float64.
func DecodeFailures(r io.Reader) ([]ArchivedFailure, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer dec.Close()

	var failures []ArchivedFailure
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var f ArchivedFailure
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptArchive, len(failures)+1, err)
		}
		failures = append(failures, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	return failures, nil
}
