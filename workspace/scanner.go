// Package workspace implements the parallel directory scanner that lists
// workspace sub-directories, detects completed products, and reads per-
// directory value documents (spec.md §4.5).
package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/sourcegraph/conc/pool"

	"github.com/rowhpc/row/logger"
	"github.com/rowhpc/row/rowerrors"
)

type resultsMutex struct{ sync.Mutex }

func (m *resultsMutex) lock()   { m.Lock() }
func (m *resultsMutex) unlock() { m.Unlock() }

var log = logger.New("workspace")

// DefaultIOThreads is the default worker count for scan operations
// (spec.md §5).
const DefaultIOThreads = 8

// ListDirectories synchronously enumerates the immediate sub-directories of
// workspacePath (spec.md §4.5, list_directories).
func ListDirectories(workspacePath string) ([]string, error) {
	entries, err := os.ReadDir(workspacePath)
	if err != nil {
		return nil, rowerrors.DirRead(workspacePath, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if !utf8.ValidString(e.Name()) {
			return nil, rowerrors.NonUTF8Path(filepath.Join(workspacePath, e.Name()))
		}
		names = append(names, e.Name())
	}
	log.Printf("listed %d directories under %s", len(names), workspacePath)
	return names, nil
}

// ActionProducts names an action and the product files that mark it complete.
type ActionProducts struct {
	Action   string
	Products []string
}

// FindCompletedDirectories spawns ioThreads workers over directories; for
// each directory and each action with a nonempty product list, it lists the
// directory's contents and emits the pair when every product is present
// (spec.md §4.5, find_completed_directories). The result maps action name to
// the set of directory names found complete.
func FindCompletedDirectories(workspacePath string, directories []string, actions []ActionProducts, ioThreads int) *Future[map[string]map[string]struct{}] {
	return Go(func() (map[string]map[string]struct{}, error) {
		if ioThreads <= 0 {
			ioThreads = DefaultIOThreads
		}
		results := make(map[string]map[string]struct{}, len(actions))
		for _, a := range actions {
			results[a.Action] = map[string]struct{}{}
		}
		if len(directories) == 0 {
			return results, nil
		}

		p := pool.New().WithMaxGoroutines(ioThreads).WithErrors()
		var mu resultsMutex
		for _, dir := range directories {
			dir := dir
			p.Go(func() error {
				contents, err := listContents(filepath.Join(workspacePath, dir))
				if err != nil {
					return err
				}
				for _, a := range actions {
					if len(a.Products) == 0 {
						continue
					}
					if hasAll(contents, a.Products) {
						mu.lock()
						results[a.Action][dir] = struct{}{}
						mu.unlock()
					}
				}
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return nil, err
		}
		log.LazyPrintf(func() string { return summarizeCompleted(results) })
		return results, nil
	})
}

// ReadValues spawns ioThreads workers over directories, reading and parsing
// the configured value file for each; a directory's value is nil when no
// value file is configured (spec.md §4.5, read_values).
func ReadValues(workspacePath string, directories []string, valueFileName string, ioThreads int) *Future[map[string]interface{}] {
	return Go(func() (map[string]interface{}, error) {
		if ioThreads <= 0 {
			ioThreads = DefaultIOThreads
		}
		results := make(map[string]interface{}, len(directories))
		if len(directories) == 0 {
			return results, nil
		}
		if valueFileName == "" {
			for _, dir := range directories {
				results[dir] = nil
			}
			return results, nil
		}

		p := pool.New().WithMaxGoroutines(ioThreads).WithErrors()
		var mu resultsMutex
		for _, dir := range directories {
			dir := dir
			p.Go(func() error {
				path := filepath.Join(workspacePath, dir, valueFileName)
				data, err := os.ReadFile(path)
				if err != nil {
					return rowerrors.FileRead(path, err)
				}
				var v interface{}
				if err := json.Unmarshal(data, &v); err != nil {
					return rowerrors.JSONParse(path, err)
				}
				mu.lock()
				results[dir] = v
				mu.unlock()
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	})
}

func listContents(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rowerrors.DirRead(dir, err)
	}
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.Name()] = struct{}{}
	}
	return set, nil
}

func hasAll(contents map[string]struct{}, products []string) bool {
	for _, p := range products {
		if _, ok := contents[p]; !ok {
			return false
		}
	}
	return true
}

func summarizeCompleted(results map[string]map[string]struct{}) string {
	total := 0
	for _, set := range results {
		total += len(set)
	}
	return "scan found " + strconv.Itoa(total) + " completed (action, directory) pairs"
}
