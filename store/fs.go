package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nemo-facility/nemo-app-drive/records"
)

// FileStore keeps a table in a local CSV file. The file is replaced atomically
// by writing to a temporary file in the same directory and renaming it.
type FileStore struct {
	Path string
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) Read(ctx context.Context) (*records.Table, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	defer f.Close()

	return records.ReadCSV(f)
}

func (s *FileStore) Write(ctx context.Context, table *records.Table) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".nemo-*.csv")
	if err != nil {
		return err
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := records.WriteCSV(tmp, table); err != nil {
		return fmt.Errorf("error writing %v (%w)", s.Path, err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.Path)
}

func (s *FileStore) String() string {
	return "file://" + s.Path
}
