package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	FolderMimeType = "application/vnd.google-apps.folder"
	CSVMimeType    = "text/csv"
	XLSXMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Drive is the subset of Google Drive operations used to publish files. Every
// operation works across shared drives.
type Drive interface {
	GetOrCreateFolder(ctx context.Context, parent, name string) (string, error)
	Find(ctx context.Context, folder, name string) (string, error)
	Upload(ctx context.Context, folder, name, mimeType string, r io.Reader) (string, error)
	Download(ctx context.Context, id string) (io.ReadCloser, error)
}

type Service struct {
	files *drive.FilesService
	log   log.FieldLogger
}

var _ Drive = (*Service)(nil)

func NewService(ctx context.Context, client *http.Client, logger log.FieldLogger) (*Service, error) {
	google, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Drive client (%v)", err)
	}

	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Service{
		files: google.Files,
		log:   logger,
	}, nil
}

// GetOrCreateFolder returns the ID of the named folder in the parent folder,
// creating it if it does not exist.
func (s *Service) GetOrCreateFolder(ctx context.Context, parent, name string) (string, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed=false", escape(name), escape(parent), FolderMimeType)

	id, err := s.first(ctx, q)
	if err != nil {
		return "", fmt.Errorf("error looking up folder '%v' (%w)", name, err)
	} else if id != "" {
		s.log.Debugf("found folder '%v' (%v)", name, id)
		return id, nil
	}

	folder := drive.File{
		Name:     name,
		MimeType: FolderMimeType,
		Parents:  []string{parent},
	}

	created, err := s.files.Create(&folder).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("error creating folder '%v' (%w)", name, err)
	}

	s.log.Infof("created folder '%v' (%v)", name, created.Id)

	return created.Id, nil
}

// Find returns the ID of the named file in the folder or "" if there is no such
// file.
func (s *Service) Find(ctx context.Context, folder, name string) (string, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", escape(name), escape(folder))

	return s.first(ctx, q)
}

// Upload replaces the contents of the named file in the folder, or creates the
// file if it does not exist, and returns the file ID.
func (s *Service) Upload(ctx context.Context, folder, name, mimeType string, r io.Reader) (string, error) {
	id, err := s.Find(ctx, folder, name)
	if err != nil {
		return "", err
	}

	if id != "" {
		updated, err := s.files.Update(id, &drive.File{}).
			Media(r, googleapi.ContentType(mimeType)).
			Fields("id").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error updating '%v' (%w)", name, err)
		}

		s.log.WithFields(log.Fields{"file": name, "id": updated.Id}).Infof("updated %v", name)

		return updated.Id, nil
	}

	file := drive.File{
		Name:    name,
		Parents: []string{folder},
	}

	created, err := s.files.Create(&file).
		Media(r, googleapi.ContentType(mimeType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("error uploading '%v' (%w)", name, err)
	}

	s.log.WithFields(log.Fields{"file": name, "id": created.Id}).Infof("uploaded %v", name)

	return created.Id, nil
}

func (s *Service) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	response, err := s.files.Get(id).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, fmt.Errorf("error downloading file %v (%w)", id, err)
	}

	return response.Body, nil
}

func (s *Service) first(ctx context.Context, q string) (string, error) {
	list, err := s.files.List().
		Q(q).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}

	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	return "", nil
}

// Path walks (and creates where necessary) a folder path below the root folder
// and returns the ID of the last folder.
func Path(ctx context.Context, d Drive, root string, folders ...string) (string, error) {
	id := root
	for _, name := range folders {
		folder, err := d.GetOrCreateFolder(ctx, id, name)
		if err != nil {
			return "", err
		}

		id = folder
	}

	return id, nil
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
