package sweep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps all results in one JSON document.
//
// The document is a single object keyed by candidate, written in canonical
// order (shorter keys first, then lexicographic) with two-space indentation.
// Every Load and Save holds a FileLock on "<path>.lock", so any number of
// goroutines and processes can share one document.
type FileStore struct {
	path string
	lock Locker
}

// NewFileStore creates a store backed by the document at path. The document
// is created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: NewFileLock(path),
	}
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Identity() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (Records, error) {
	var records Records
	err := withLock(ctx, s.lock, s.path, func() error {
		data, err := os.ReadFile(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			records = Records{}
			return nil
		}
		if err != nil {
			return &StoreError{Op: "load", Resource: s.path, Cause: err}
		}
		records, err = DecodeDocument(data)
		if err != nil {
			return &CorruptStoreError{Resource: s.path, Cause: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *FileStore) Save(ctx context.Context, records Records) error {
	data, err := EncodeDocument(records)
	if err != nil {
		return &StoreError{Op: "save", Resource: s.path, Cause: err}
	}
	return withLock(ctx, s.lock, s.path, func() error {
		if err := writeFileAtomic(s.path, data); err != nil {
			return &StoreError{Op: "save", Resource: s.path, Cause: err}
		}
		return nil
	})
}

// EncodeDocument serializes records in canonical form. Encoding the result
// of DecodeDocument(EncodeDocument(r)) again yields identical bytes.
func EncodeDocument(records Records) ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, key := range records.SortedKeys() {
		if i > 0 {
			compact.WriteByte(',')
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(records[key])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
		compact.Write(kb)
		compact.WriteByte(':')
		compact.Write(vb)
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// DecodeDocument parses a persisted document. Anything other than a JSON
// object of records is an error.
func DecodeDocument(data []byte) (Records, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("document is not a JSON object")
	}
	raw := map[string]ResultRecord{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	records := make(Records, len(raw))
	for key, rec := range raw {
		rec.Candidate = key
		records[key] = rec
	}
	return records, nil
}

// writeFileAtomic replaces path with data via a synced temp file and a
// rename, so readers never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
