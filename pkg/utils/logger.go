package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// RotatingWriter writes to a file and rotates it when it exceeds MaxSize.
type RotatingWriter struct {
	Filename   string
	MaxSize    int64 // bytes
	MaxBackups int
	file       *os.File
	mu         sync.Mutex
}

// NewRotatingWriter creates a rotating file writer.
func NewRotatingWriter(filename string, maxSize int64, maxBackups int) *RotatingWriter {
	return &RotatingWriter{
		Filename:   filename,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.Filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.file = file
	return nil
}

func (w *RotatingWriter) close() error {
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}

func (w *RotatingWriter) rotate() error {
	if err := w.close(); err != nil {
		return err
	}

	for i := w.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", w.Filename, i)
		newPath := fmt.Sprintf("%s.%d", w.Filename, i+1)
		os.Rename(oldPath, newPath)
	}

	if w.MaxBackups > 0 {
		os.Rename(w.Filename, w.Filename+".1")
	}

	return w.open()
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(); err != nil {
			return os.Stderr.Write(p)
		}
	}

	info, err := w.file.Stat()
	if err == nil && info.Size() > w.MaxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	return w.file.Write(p)
}

// SetupLogger points the default logger at stderr plus a rotating log file.
func SetupLogger(logDir string) {
	os.MkdirAll(logDir, 0755)
	logFile := filepath.Join(logDir, "microclaw.log")

	// 10MB limit, 5 backups
	rotating := NewRotatingWriter(logFile, 10*1024*1024, 5)

	log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	log.SetReportTimestamp(true)
	if os.Getenv("MICROCLAW_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}
}
