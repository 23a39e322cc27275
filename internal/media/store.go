package media

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrOutsideRoot = errors.New("path outside upload directory")

type FSStore struct {
	Dir       string
	URLPrefix string
}

func NewFSStore(dir, urlPrefix string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	prefix := "/" + strings.Trim(urlPrefix, "/")
	return &FSStore{Dir: dir, URLPrefix: prefix}, nil
}

func (s *FSStore) Save(prefix, ext string, data []byte) (string, error) {
	name := fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext)
	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path.Join(s.URLPrefix, name), nil
}

func (s *FSStore) Remove(url string) error {
	name, err := s.fileName(url)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FSStore) fileName(url string) (string, error) {
	if !strings.HasPrefix(url, s.URLPrefix+"/") {
		return "", ErrOutsideRoot
	}
	name := strings.TrimPrefix(url, s.URLPrefix+"/")
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", ErrOutsideRoot
	}
	return name, nil
}
