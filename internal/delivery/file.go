package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bobmcallan/digest/internal/models"
)

const defaultFilename = "daily_stock_report.html"

// FileChannel writes the HTML report into a directory
type FileChannel struct {
	dir string
}

// NewFileChannel creates a file channel; an empty dir means the working directory
func NewFileChannel(dir string) *FileChannel {
	return &FileChannel{dir: dir}
}

func (f *FileChannel) Name() string { return "file" }

func (f *FileChannel) Send(ctx context.Context, msg *models.Message) (string, error) {
	name := filepath.Base(msg.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = defaultFilename
	}
	dir := f.dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(msg.HTML), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
