package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Memory is an in-memory Drive, used for dry runs where nothing should be
// published.
type Memory struct {
	sync.RWMutex
	files map[string]*memfile
	next  int
}

type memfile struct {
	id       string
	parent   string
	name     string
	mimeType string
	content  []byte
}

var _ Drive = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		files: map[string]*memfile{},
	}
}

func (m *Memory) GetOrCreateFolder(ctx context.Context, parent, name string) (string, error) {
	m.Lock()
	defer m.Unlock()

	if f := m.lookup(parent, name); f != nil && f.mimeType == FolderMimeType {
		return f.id, nil
	}

	return m.create(parent, name, FolderMimeType, nil), nil
}

func (m *Memory) Find(ctx context.Context, folder, name string) (string, error) {
	m.RLock()
	defer m.RUnlock()

	if f := m.lookup(folder, name); f != nil {
		return f.id, nil
	}

	return "", nil
}

func (m *Memory) Upload(ctx context.Context, folder, name, mimeType string, r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	m.Lock()
	defer m.Unlock()

	if f := m.lookup(folder, name); f != nil {
		f.content = content
		f.mimeType = mimeType
		return f.id, nil
	}

	return m.create(folder, name, mimeType, content), nil
}

func (m *Memory) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	m.RLock()
	defer m.RUnlock()

	f, ok := m.files[id]
	if !ok || f.mimeType == FolderMimeType {
		return nil, fmt.Errorf("file %v not found", id)
	}

	return io.NopCloser(bytes.NewReader(f.content)), nil
}

// List returns the '/' separated paths of every file below the root folder.
func (m *Memory) List(root string) []string {
	m.RLock()
	defer m.RUnlock()

	list := []string{}
	for _, f := range m.files {
		if f.mimeType == FolderMimeType {
			continue
		}

		if p, ok := m.path(f, root); ok {
			list = append(list, p)
		}
	}

	sort.Strings(list)

	return list
}

// Content returns the content of a file by path below the root folder.
func (m *Memory) Content(root, path string) ([]byte, bool) {
	m.RLock()
	defer m.RUnlock()

	for _, f := range m.files {
		if p, ok := m.path(f, root); ok && p == path && f.mimeType != FolderMimeType {
			return f.content, true
		}
	}

	return nil, false
}

func (m *Memory) lookup(parent, name string) *memfile {
	for _, f := range m.files {
		if f.parent == parent && f.name == name {
			return f
		}
	}

	return nil
}

func (m *Memory) create(parent, name, mimeType string, content []byte) string {
	m.next++
	id := fmt.Sprintf("file-%04d", m.next)

	m.files[id] = &memfile{
		id:       id,
		parent:   parent,
		name:     name,
		mimeType: mimeType,
		content:  content,
	}

	return id
}

func (m *Memory) path(f *memfile, root string) (string, bool) {
	p := f.name
	for parent := f.parent; parent != root; {
		folder, ok := m.files[parent]
		if !ok {
			return "", false
		}

		p = folder.name + "/" + p
		parent = folder.parent
	}

	return p, true
}
