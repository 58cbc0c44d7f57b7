package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"banksia.lava.moe/internal/models"
)

const secondsPerWeek = 7 * 24 * 60 * 60

// Writer organizes raw realtime messages into a weekly partitioned
// directory tree under a single archive root. Messages are named by their
// feed header timestamp, one partition directory per (feed, ISO week).
//
// The moment a write lands in week W for a feed, the week W-1 partition
// for that feed can no longer receive in-order writes, so Writer hands it
// to the compression worker. A very late out-of-order message for an
// already compressed week recreates the directory; it is only picked up
// again at the next rollover.
type Writer struct {
	root   string
	worker *Worker
	logger *slog.Logger
}

func NewWriter(root string, worker *Worker, logger *slog.Logger) *Writer {
	return &Writer{
		root:   root,
		worker: worker,
		logger: logger.With(slog.String("component", "archive_writer")),
	}
}

// PartitionKey returns the partition directory name for an epoch-seconds
// timestamp: "<isoYear>-<isoWeek>", week zero-padded to two digits so keys
// sort lexicographically in time order.
func PartitionKey(ts uint64) string {
	year, week := time.Unix(int64(ts), 0).UTC().ISOWeek()
	return fmt.Sprintf("%d-%02d", year, week)
}

// Write stores one raw message under the partition for its header
// timestamp. The write is idempotent: an existing file for the same
// (feed, timestamp) is left untouched. Duplicate polls of an unchanged
// upstream feed are common and cheap to detect this way.
func (w *Writer) Write(feed models.Feed, ts uint64, data []byte) error {
	feedDir := filepath.Join(w.root, string(feed.Mode), string(feed.Kind))

	// Activity in this week closes last week's partition for this feed.
	prev := filepath.Join(feedDir, PartitionKey(ts-secondsPerWeek))
	if info, err := os.Stat(prev); err == nil && info.IsDir() {
		w.worker.Enqueue(prev)
	}

	dir := filepath.Join(feedDir, PartitionKey(ts))
	target := filepath.Join(dir, fmt.Sprintf("%d.proto", ts))

	if _, err := os.Stat(target); err == nil {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating partition %s: %w", dir, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}
