// Package archive reads historical raw posts from parquet files for
// backfilling the search index.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/floodwatch/pipeline/internal/logging"
)

const readBatchSize = 256

// record is the on-disk row layout. The payload column carries the raw
// post exactly as collected, serialized as JSON.
type record struct {
	ID          string `parquet:"id"`
	CollectedAt int64  `parquet:"collected_at"`
	Payload     string `parquet:"payload"`
}

// Post is one archived raw post.
type Post struct {
	ID          string
	CollectedAt time.Time
	Document    map[string]any
}

// Reader streams archived posts out of a directory of parquet files.
type Reader struct {
	dir    string
	logger logging.Logger
}

// NewReader creates a reader over the given archive directory.
func NewReader(dir string, logger logging.Logger) *Reader {
	return &Reader{dir: dir, logger: logger}
}

// Files lists the archive's parquet files in lexical order.
func (r *Reader) Files() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("list archive files: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Walk streams every archived post to fn, file by file in lexical order.
// Rows whose payload does not decode are skipped and logged. A non-nil
// error from fn stops the walk.
func (r *Reader) Walk(ctx context.Context, fn func(Post) error) error {
	files, err := r.Files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no parquet files under %s", r.dir)
	}

	for _, path := range files {
		if walkErr := r.walkFile(ctx, path, fn); walkErr != nil {
			return fmt.Errorf("archive file %s: %w", filepath.Base(path), walkErr)
		}
	}
	return nil
}

func (r *Reader) walkFile(ctx context.Context, path string, fn func(Post) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := parquet.NewGenericReader[record](f)
	defer func() { _ = reader.Close() }()

	rows := make([]record, readBatchSize)
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		n, readErr := reader.Read(rows)
		for i := range n {
			post, ok := r.decode(rows[i], path)
			if !ok {
				continue
			}
			if fnErr := fn(post); fnErr != nil {
				return fnErr
			}
		}

		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read rows: %w", readErr)
		}
	}
}

func (r *Reader) decode(row record, path string) (Post, bool) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(row.Payload), &doc); err != nil {
		r.logger.Warn("Skipping undecodable archive row",
			logging.String("file", filepath.Base(path)),
			logging.String("id", row.ID),
			logging.Error(err),
		)
		return Post{}, false
	}
	return Post{
		ID:          row.ID,
		CollectedAt: time.UnixMilli(row.CollectedAt).UTC(),
		Document:    doc,
	}, true
}
