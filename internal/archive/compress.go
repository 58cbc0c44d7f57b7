package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"banksia.lava.moe/internal/logging"
)

// CompressFunc compresses a partition directory into <dir>.tar.zst.
type CompressFunc func(dir string) error

// Worker drains a queue of closed partition directories, compressing each
// one and deleting the original. The queue is a set: enqueueing the same
// partition repeatedly is a no-op. A partition that fails to compress or
// delete is moved to a per-process ignore set and never retried, since
// repeated failures usually mean a persistent environmental problem.
type Worker struct {
	compress CompressFunc
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	queue  map[string]struct{}
	ignore map[string]struct{}

	shutdownChan chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

func NewWorker(logger *slog.Logger) *Worker {
	w := &Worker{
		interval:     30 * time.Second,
		logger:       logger.With(slog.String("component", "compression_worker")),
		queue:        make(map[string]struct{}),
		ignore:       make(map[string]struct{}),
		shutdownChan: make(chan struct{}),
	}
	w.compress = func(dir string) error {
		return CompressDir(dir, w.logger)
	}
	return w
}

// Enqueue marks a partition directory as eligible for compression.
// Ignored partitions stay ignored.
func (w *Worker) Enqueue(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, skip := w.ignore[dir]; skip {
		return
	}
	w.queue[dir] = struct{}{}
}

// Start spawns the drain loop. It runs until Shutdown is called.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Shutdown stops the drain loop and waits for an in-flight compression to
// finish.
func (w *Worker) Shutdown() {
	w.shutdownOnce.Do(func() {
		close(w.shutdownChan)
		w.wg.Wait()
	})
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.drain()
		select {
		case <-ticker.C:
		case <-w.shutdownChan:
			logging.LogOperation(w.logger, "shutting_down_compression_worker")
			return
		}
	}
}

// drain processes every currently queued partition.
func (w *Worker) drain() {
	for {
		next, ok := w.next()
		if !ok {
			return
		}

		select {
		case <-w.shutdownChan:
			return
		default:
		}

		info, err := os.Stat(next)
		if err != nil || !info.IsDir() {
			// Already compressed or removed by an earlier pass.
			w.dequeue(next)
			continue
		}

		if err := w.compress(next); err != nil {
			logging.LogError(w.logger, "failed to compress partition", err,
				slog.String("partition", next))
			w.abandon(next)
			continue
		}

		if err := os.RemoveAll(next); err != nil {
			logging.LogError(w.logger, "failed to delete compressed partition", err,
				slog.String("partition", next))
			w.abandon(next)
			continue
		}

		logging.LogOperation(w.logger, "compressed_partition", slog.String("partition", next))
		w.dequeue(next)
	}
}

func (w *Worker) next() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for dir := range w.queue {
		return dir, true
	}
	return "", false
}

func (w *Worker) dequeue(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.queue, dir)
}

// abandon removes a failed partition from the queue for the lifetime of
// the process.
func (w *Worker) abandon(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.queue, dir)
	w.ignore[dir] = struct{}{}
}

// CompressDir writes <dir>.tar.zst containing the directory's contents,
// with entry names rooted at the directory's base name.
func CompressDir(dir string, logger *slog.Logger) (err error) {
	out, err := os.Create(dir + ".tar.zst")
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer logging.HandleDeferredError(&err, out.Close, logger, "close_archive_file")

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	defer logging.HandleDeferredError(&err, zw.Close, logger, "close_zstd_writer")

	tw := tar.NewWriter(zw)
	defer logging.HandleDeferredError(&err, tw.Close, logger, "close_tar_writer")

	base := filepath.Base(dir)
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(base, rel))

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close() // nolint

		_, err = io.Copy(tw, f)
		return err
	})
}
