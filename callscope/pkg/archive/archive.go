// Package archive persists call trees in an embedded pebble store, one
// zstd-compressed snapshot plus one metadata row per trace.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/gofrs/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/xlog"
	"github.com/tracelight/callscope/library/go/core/log"
)

var ErrNotFound = errors.New("archive: trace not found")

const (
	tracePrefix = "t:"
	metaPrefix  = "m:"

	zstdCompression = "zstd"
)

// Meta describes one archived trace.
type Meta struct {
	ID           string    `json:"id"`
	Label        string    `json:"label,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	StartTime    float64   `json:"startTime"`
	EndTime      float64   `json:"endTime"`
	NumFrames    int       `json:"numFrames"`
	NumFunctions int       `json:"numFunctions"`
	MaxDepth     int       `json:"maxDepth"`
	Compression  string    `json:"compression"`
	SizeBytes    int       `json:"sizeBytes"`
}

type Archive struct {
	log xlog.Logger
	db  *pebble.DB
}

func Open(path string, l xlog.Logger) (*Archive, error) {
	db, err := pebble.Open(path, &pebble.Options{Logger: l.WithName("pebble").Fmt()})
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	return &Archive{log: l.WithName("archive"), db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Put stores a snapshot of the trace under a fresh id and returns its
// metadata row.
func (a *Archive) Put(ctx context.Context, t *calltree.Trace, label string) (*Meta, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(t.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("archive: encode snapshot: %w", err)
	}
	compressed, err := compressZstd(body)
	if err != nil {
		return nil, fmt.Errorf("archive: compress snapshot: %w", err)
	}

	meta := &Meta{
		ID:           id.String(),
		Label:        label,
		CreatedAt:    time.Now().UTC(),
		StartTime:    t.StartTime(),
		EndTime:      t.EndTime(),
		NumFrames:    t.NumFrames(),
		NumFunctions: t.Functions().Len(),
		MaxDepth:     int(t.MaxDepth()),
		Compression:  zstdCompression,
		SizeBytes:    len(compressed),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	batch := a.db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte(tracePrefix+meta.ID), compressed, nil); err != nil {
		return nil, err
	}
	if err := batch.Set([]byte(metaPrefix+meta.ID), metaJSON, nil); err != nil {
		return nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("archive: store trace: %w", err)
	}

	a.log.Info(ctx, "archived trace",
		log.String("trace.id", meta.ID),
		log.Int("frames", meta.NumFrames),
		log.Int("size.bytes", meta.SizeBytes),
	)
	return meta, nil
}

// Get rebuilds an archived trace.
func (a *Archive) Get(ctx context.Context, id string) (*calltree.Trace, error) {
	meta, err := a.Meta(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, closer, err := a.db.Get([]byte(tracePrefix + id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: read trace %s: %w", id, err)
	}
	body := append([]byte(nil), raw...)
	if err := closer.Close(); err != nil {
		return nil, err
	}

	body, err = uncompressIfNeeded(body, meta.Compression)
	if err != nil {
		return nil, fmt.Errorf("archive: uncompress trace %s: %w", id, err)
	}

	var s calltree.Snapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("archive: decode trace %s: %w", id, err)
	}
	return calltree.Restore(&s)
}

// Meta returns the metadata row of an archived trace.
func (a *Archive) Meta(ctx context.Context, id string) (*Meta, error) {
	raw, closer, err := a.db.Get([]byte(metaPrefix + id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: read meta %s: %w", id, err)
	}
	defer closer.Close()

	meta := new(Meta)
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, fmt.Errorf("archive: decode meta %s: %w", id, err)
	}
	return meta, nil
}

// List returns metadata for every archived trace, oldest first.
func (a *Archive) List(ctx context.Context) ([]*Meta, error) {
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(metaPrefix),
		UpperBound: []byte(metaPrefix + "\xff"),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer iter.Close()

	metas := make([]*Meta, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		meta := new(Meta)
		if err := json.Unmarshal(iter.Value(), meta); err != nil {
			return nil, fmt.Errorf("archive: decode meta %s: %w", string(iter.Key()), err)
		}
		metas = append(metas, meta)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.Before(metas[j].CreatedAt)
	})
	return metas, nil
}

// Delete removes an archived trace and its metadata.
func (a *Archive) Delete(ctx context.Context, id string) error {
	if _, err := a.Meta(ctx, id); err != nil {
		return err
	}

	batch := a.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete([]byte(tracePrefix+id), nil); err != nil {
		return err
	}
	if err := batch.Delete([]byte(metaPrefix+id), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("archive: delete trace %s: %w", id, err)
	}

	a.log.Info(ctx, "deleted trace", log.String("trace.id", id))
	return nil
}

func compressZstd(raw []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func uncompressZstd(raw []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(raw, []byte{})
}

func uncompressIfNeeded(raw []byte, compression string) ([]byte, error) {
	if strings.HasPrefix(compression, zstdCompression) {
		return uncompressZstd(raw)
	}
	return raw, nil
}
