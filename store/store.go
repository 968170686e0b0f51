// Package store persists master tables as CSV files on a local disk, in an S3
// bucket or in a Google Drive folder. The backend is selected by the URL
// scheme of the location.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	log "github.com/sirupsen/logrus"

	"github.com/nemo-facility/nemo-app-drive/drive"
	"github.com/nemo-facility/nemo-app-drive/records"
)

// ErrNotFound is returned by Read if the table has never been written.
var ErrNotFound = errors.New("not found")

// Store reads and writes a single table. Write replaces the whole table.
type Store interface {
	Read(ctx context.Context) (*records.Table, error)
	Write(ctx context.Context, table *records.Table) error
	String() string
}

// Options supplies the clients for the remote backends. A nil S3 client is
// created from the default AWS session on first use.
type Options struct {
	Drive drive.Drive
	S3    s3iface.S3API
	Log   log.FieldLogger
}

// Open returns the Store for a location, e.g. file:///var/nemo/x.csv,
// s3://bucket/x.csv or gdrive://<folder-id>/2024/Master_CSV/x.csv. A location
// without a scheme is a local file path.
func Open(location string, options Options) (Store, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("a valid location with scheme (file://, s3:// or gdrive://) must be given: %v", err)
	}

	switch u.Scheme {
	case "", "file":
		p := u.Path
		if u.Scheme == "" {
			p = location
		}

		if p == "" {
			return nil, fmt.Errorf("missing file path in '%v'", location)
		}

		return &FileStore{Path: p}, nil

	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("invalid S3 location '%v' - expected s3://<bucket>/<key>", location)
		}

		client := options.S3
		if client == nil {
			sess, err := session.NewSession()
			if err != nil {
				return nil, fmt.Errorf("unable to create AWS session (%v)", err)
			}

			client = s3.New(sess)
		}

		return &S3Store{Bucket: u.Host, Key: key, s3: client}, nil

	case "gdrive":
		if options.Drive == nil {
			return nil, fmt.Errorf("no Google Drive client for '%v'", location)
		}

		parts := split(u.Path)
		if u.Host == "" || len(parts) == 0 {
			return nil, fmt.Errorf("invalid Google Drive location '%v' - expected gdrive://<folder-id>/<path>/<file>", location)
		}

		return &DriveStore{
			Root:    u.Host,
			Folders: parts[:len(parts)-1],
			Name:    parts[len(parts)-1],
			drive:   options.Drive,
		}, nil

	default:
		return nil, fmt.Errorf("unknown scheme '%s' given, please provide either file://, s3:// or gdrive://", u.Scheme)
	}
}

// Join appends path elements to a store location.
func Join(location string, elements ...string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		u.Path = path.Join(append([]string{"/", u.Path}, elements...)...)
		return u.String()
	}

	return path.Join(append([]string{location}, elements...)...)
}

func split(p string) []string {
	parts := []string{}
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}

	return parts
}
