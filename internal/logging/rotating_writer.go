package logging

import (
	"fmt"
	"os"
	"sync"
)

// rotatingWriter caps a log file at maxBytes. On overflow the file is
// shifted to path.1, path.1 to path.2 and so on, keeping at most backups
// old files. With no backups the file is truncated in place.
type rotatingWriter struct {
	path     string
	maxBytes int64
	backups  int

	mu   sync.Mutex
	file *os.File
	size int64
}

func newRotatingWriter(path string, maxMB, backups int) (*rotatingWriter, error) {
	if maxMB <= 0 {
		maxMB = 10
	}
	if backups < 0 {
		backups = 0
	}
	f, size, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	return &rotatingWriter{
		path:     path,
		maxBytes: int64(maxMB) * 1024 * 1024,
		backups:  backups,
		file:     f,
		size:     size,
	}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		f, size, err := openLogFile(w.path)
		if err != nil {
			return 0, err
		}
		w.file, w.size = f, size
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate runs with mu held.
func (w *rotatingWriter) rotate() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if w.backups == 0 {
		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		w.file, w.size = f, 0
		return nil
	}
	for i := w.backups - 1; i >= 1; i-- {
		_ = os.Rename(backupName(w.path, i), backupName(w.path, i+1))
	}
	if err := os.Rename(w.path, backupName(w.path, 1)); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, size, err := openLogFile(w.path)
	if err != nil {
		return err
	}
	w.file, w.size = f, size
	return nil
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

func openLogFile(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
