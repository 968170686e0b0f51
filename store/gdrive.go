package store

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/nemo-facility/nemo-app-drive/drive"
	"github.com/nemo-facility/nemo-app-drive/records"
)

// DriveStore keeps a table as a CSV file in a Google Drive folder. Folders are
// created on write and the file is updated in place if it already exists.
type DriveStore struct {
	Root    string
	Folders []string
	Name    string
	drive   drive.Drive
}

var _ Store = (*DriveStore)(nil)

func NewDriveStore(d drive.Drive, root string, folders []string, name string) *DriveStore {
	return &DriveStore{
		Root:    root,
		Folders: folders,
		Name:    name,
		drive:   d,
	}
}

func (s *DriveStore) Read(ctx context.Context) (*records.Table, error) {
	folder := s.Root
	for _, name := range s.Folders {
		id, err := s.drive.Find(ctx, folder, name)
		if err != nil {
			return nil, err
		} else if id == "" {
			return nil, ErrNotFound
		}

		folder = id
	}

	id, err := s.drive.Find(ctx, folder, s.Name)
	if err != nil {
		return nil, err
	} else if id == "" {
		return nil, ErrNotFound
	}

	r, err := s.drive.Download(ctx, id)
	if err != nil {
		return nil, err
	}

	defer r.Close()

	return records.ReadCSV(r)
}

func (s *DriveStore) Write(ctx context.Context, table *records.Table) error {
	var b bytes.Buffer
	if err := records.WriteCSV(&b, table); err != nil {
		return err
	}

	folder, err := drive.Path(ctx, s.drive, s.Root, s.Folders...)
	if err != nil {
		return err
	}

	if _, err := s.drive.Upload(ctx, folder, s.Name, drive.CSVMimeType, &b); err != nil {
		return fmt.Errorf("failed to write '%v': %w", s, err)
	}

	return nil
}

func (s *DriveStore) String() string {
	return "gdrive://" + path.Join(append([]string{s.Root}, append(s.Folders, s.Name)...)...)
}
