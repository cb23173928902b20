// Package ingest discovers PDF files to extract, either by walking a
// directory once or by watching it for new arrivals.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid update/rename bursts
}

// StartWatcher emits paths of PDFs appearing under the roots until ctx ends.
// Writes are debounced so half-copied files are not picked up mid-transfer.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watcher.create_failed", "error", err)
		return nil, nil, err
	}

	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && allowed(path) {
				select {
				case evCh <- path:
				default:
					logger.Warn("ingest.watcher.backlog_full", "path", path)
				}
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("ingest.watcher.add_root_failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer w.Close()

		pending := make(map[string]*time.Timer)
		defer func() {
			for _, t := range pending {
				t.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				select {
				case errCh <- err:
				default:
				}
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create != 0 {
					// new subdirectories need their own watch
					if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
						_ = w.Add(ev.Name)
						continue
					}
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 || !allowed(ev.Name) {
					continue
				}
				path := ev.Name
				if t, exists := pending[path]; exists {
					t.Stop()
				}
				pending[path] = time.AfterFunc(cfg.Debounce, func() {
					select {
					case evCh <- path:
					case <-ctx.Done():
					}
				})
			}
		}
	}()

	logger.Info("ingest.watcher.started", "roots", cfg.Roots, "debounce", cfg.Debounce.String())
	return evCh, errCh, nil
}

func allowed(path string) bool {
	return constants.IsAllowedExt(constants.NormalizeExt(filepath.Ext(path)))
}
