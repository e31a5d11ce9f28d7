package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/rowhpc/row/logger"
	"github.com/rowhpc/row/rowerrors"
)

var log = logger.New("state")

const (
	dataDirName          = ".row"
	valuesFileName       = "directories.json"
	completedFileName    = "completed.postcard"
	submittedFileName    = "submitted.postcard"
	stagingDirName       = "completed"
)

func dataDir(root string) string      { return filepath.Join(root, dataDirName) }
func valuesPath(root string) string   { return filepath.Join(dataDir(root), valuesFileName) }
func completedPath(root string) string { return filepath.Join(dataDir(root), completedFileName) }
func submittedPath(root string) string { return filepath.Join(dataDir(root), submittedFileName) }
func stagingDir(root string) string   { return filepath.Join(dataDir(root), stagingDirName) }

// Load reads the persisted cache from <root>/.row, tolerating missing files
// (they yield empty structures), and ensures a Completed key exists for
// every name in actionNames (spec.md §4.6, "Read").
func Load(root string, actionNames []string) (*State, error) {
	s := New(actionNames)

	if data, err := os.ReadFile(valuesPath(root)); err == nil {
		if err := json.Unmarshal(data, &s.Values); err != nil {
			return nil, rowerrors.JSONParse(valuesPath(root), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, rowerrors.FileRead(valuesPath(root), err)
	}

	if data, err := os.ReadFile(completedPath(root)); err == nil {
		var loaded map[string]map[string]struct{}
		if err := cbor.Unmarshal(data, &loaded); err != nil {
			return nil, rowerrors.BinaryParse(completedPath(root), err)
		}
		for action, set := range loaded {
			s.Completed[action] = set
		}
	} else if !os.IsNotExist(err) {
		return nil, rowerrors.FileRead(completedPath(root), err)
	}

	if data, err := os.ReadFile(submittedPath(root)); err == nil {
		if err := cbor.Unmarshal(data, &s.Submitted); err != nil {
			return nil, rowerrors.BinaryParse(submittedPath(root), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, rowerrors.FileRead(submittedPath(root), err)
	}

	log.Printf("loaded state: %d directories, %d actions with completions", len(s.Values), len(s.Completed))
	return s, nil
}

// SaveValues persists Values to directories.json when modified
// (spec.md §4.6, "Save" — "the values cache is written with a simpler
// write-all").
func (s *State) SaveValues(root string) error {
	if !s.valuesModified {
		return nil
	}
	if err := os.MkdirAll(dataDir(root), 0o755); err != nil {
		return rowerrors.DirCreate(dataDir(root), err)
	}
	data, err := json.Marshal(s.Values)
	if err != nil {
		return rowerrors.JSONSerialize(err)
	}
	if err := os.WriteFile(valuesPath(root), data, 0o644); err != nil {
		return rowerrors.FileWrite(valuesPath(root), err)
	}
	s.valuesModified = false
	return nil
}

// SaveCompleted persists Completed to completed.postcard atomically (write,
// rename) when modified, then deletes the staging packs that were merged
// into it (spec.md §4.6, §9).
func (s *State) SaveCompleted(root string) error {
	if !s.completedModified {
		return nil
	}
	if err := atomicWriteCBOR(completedPath(root), s.Completed); err != nil {
		return err
	}
	for _, f := range s.stagedFiles {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return rowerrors.FileRemove(f, err)
		}
	}
	s.stagedFiles = nil
	s.completedModified = false
	return nil
}

// SaveSubmitted persists Submitted to submitted.postcard atomically when
// modified (spec.md §4.6).
func (s *State) SaveSubmitted(root string) error {
	if !s.submittedModified {
		return nil
	}
	if err := atomicWriteCBOR(submittedPath(root), s.Submitted); err != nil {
		return err
	}
	s.submittedModified = false
	return nil
}

// Save persists every modified section (spec.md §4.7, Project.Close).
func (s *State) Save(root string) error {
	if err := s.SaveValues(root); err != nil {
		return err
	}
	if err := s.SaveCompleted(root); err != nil {
		return err
	}
	return s.SaveSubmitted(root)
}

func atomicWriteCBOR(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rowerrors.DirCreate(filepath.Dir(path), err)
	}
	data, err := cbor.Marshal(v)
	if err != nil {
		return rowerrors.BinarySerialize(path, err)
	}
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return rowerrors.FileWrite(tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return rowerrors.FileWrite(path, err)
	}
	return nil
}

// WriteStagedCompletion appends a staging pack under <root>/.row/completed/
// with a globally unique filename, for a just-finished `scan` invocation to
// record newly-completed directories without coordinating with other
// concurrent writers (spec.md §4.6, §9, "Staged completion protocol").
func WriteStagedCompletion(root string, completed map[string]map[string]struct{}) error {
	dir := stagingDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rowerrors.DirCreate(dir, err)
	}
	path := filepath.Join(dir, uuid.NewString()+".postcard")
	data, err := cbor.Marshal(completed)
	if err != nil {
		return rowerrors.BinarySerialize(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return rowerrors.FileWrite(path, err)
	}
	return nil
}
