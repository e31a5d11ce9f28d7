package state

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/rowhpc/row/progress"
	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/workspace"
)

// Synchronize reconciles the cache with the on-disk workspace
// (spec.md §4.6, "Synchronize with workspace"): directories removed from
// disk are dropped from Values; new directories are scanned in parallel for
// their value and completed products; staged completion packs are merged;
// and completed/submitted entries for directories or actions no longer
// current are pruned.
func (s *State) Synchronize(root, workspacePath string, actionNames []string, actionsProducts []workspace.ActionProducts, valueFileName string, ioThreads int, sink progress.Sink) error {
	onDisk, err := workspace.ListDirectories(workspacePath)
	if err != nil {
		return err
	}
	onDiskSet := make(map[string]struct{}, len(onDisk))
	for _, d := range onDisk {
		onDiskSet[d] = struct{}{}
	}

	var toAdd []string
	for _, d := range onDisk {
		if _, ok := s.Values[d]; !ok {
			toAdd = append(toAdd, d)
		}
	}
	for d := range s.Values {
		if _, ok := onDiskSet[d]; !ok {
			delete(s.Values, d)
			s.valuesModified = true
		}
	}

	sink = progress.Gate(sink, len(toAdd))
	sink.Start("scanning workspace", len(toAdd))
	defer sink.Finish()

	valuesFuture := workspace.ReadValues(workspacePath, toAdd, valueFileName, ioThreads)
	completedFuture := workspace.FindCompletedDirectories(workspacePath, toAdd, actionsProducts, ioThreads)

	stagedChunks, stagedPaths, err := readStagingPacks(stagingDir(root))
	if err != nil {
		return err
	}

	newValues, err := valuesFuture.Get()
	if err != nil {
		return err
	}
	newCompleted, err := completedFuture.Get()
	if err != nil {
		return err
	}

	for dir, v := range newValues {
		s.Values[dir] = v
		s.valuesModified = true
	}
	sink.Advance(len(newValues))

	for action, dirs := range newCompleted {
		if s.Completed[action] == nil {
			s.Completed[action] = map[string]struct{}{}
		}
		for dir := range dirs {
			s.Completed[action][dir] = struct{}{}
		}
		if len(dirs) > 0 {
			s.completedModified = true
		}
	}
	for _, chunk := range stagedChunks {
		for action, dirs := range chunk {
			if s.Completed[action] == nil {
				s.Completed[action] = map[string]struct{}{}
			}
			for dir := range dirs {
				s.Completed[action][dir] = struct{}{}
			}
			if len(dirs) > 0 {
				s.completedModified = true
			}
		}
	}
	s.stagedFiles = append(s.stagedFiles, stagedPaths...)

	current := make(map[string]struct{}, len(actionNames))
	for _, name := range actionNames {
		current[name] = struct{}{}
	}
	for action := range s.Completed {
		if _, ok := current[action]; !ok {
			log.Printf("dropping completed entries for action %q, no longer in workflow", action)
			delete(s.Completed, action)
			s.completedModified = true
		}
	}
	for action := range s.Submitted {
		if _, ok := current[action]; !ok {
			delete(s.Submitted, action)
			s.submittedModified = true
		}
	}
	for action, dirs := range s.Completed {
		for dir := range dirs {
			if _, ok := s.Values[dir]; !ok {
				delete(dirs, dir)
				s.completedModified = true
			}
		}
		s.Completed[action] = dirs
	}
	for action, byDir := range s.Submitted {
		for dir := range byDir {
			if _, ok := s.Values[dir]; !ok {
				delete(byDir, dir)
				s.submittedModified = true
			}
		}
		s.Submitted[action] = byDir
	}

	return nil
}

func readStagingPacks(dir string) ([]map[string]map[string]struct{}, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, rowerrors.DirRead(dir, err)
	}
	var chunks []map[string]map[string]struct{}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".postcard") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, rowerrors.FileRead(path, err)
		}
		var chunk map[string]map[string]struct{}
		if err := cbor.Unmarshal(data, &chunk); err != nil {
			return nil, nil, rowerrors.BinaryParse(path, err)
		}
		chunks = append(chunks, chunk)
		paths = append(paths, path)
	}
	return chunks, paths, nil
}
