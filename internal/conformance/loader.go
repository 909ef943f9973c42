package conformance

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

var errConflictingExpectations = errors.New("expect: a failure expectation excludes value, output and other failures")

// LoadedTest represents a test with its source file path
type LoadedTest struct {
	File  string
	Suite string
	Test  TestCase
}

// Name is the path-qualified test name.
func (lt LoadedTest) Name() string {
	return lt.File + "/" + lt.Test.Name
}

// Load walks dir and loads every test case from its .yaml files, ordered by
// file and then by position in the file.
func Load(dir string) ([]LoadedTest, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var loaded []LoadedTest
	for _, path := range files {
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			relPath = path
		}
		tests, err := loadTestFile(path, filepath.ToSlash(relPath))
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, tests...)
	}
	return loaded, nil
}

// loadTestFile parses a single YAML file and returns all test cases
func loadTestFile(path, relPath string) ([]LoadedTest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var suite TestSuite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&suite); err != nil {
		return nil, fmt.Errorf("%s: %w", relPath, err)
	}

	seen := make(map[string]bool, len(suite.Tests))
	tests := make([]LoadedTest, 0, len(suite.Tests))
	for i, test := range suite.Tests {
		if test.Name == "" {
			return nil, fmt.Errorf("%s: test #%d has no name", relPath, i+1)
		}
		if seen[test.Name] {
			return nil, fmt.Errorf("%s: duplicate test name %q", relPath, test.Name)
		}
		seen[test.Name] = true
		if err := test.Expect.validate(); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", relPath, test.Name, err)
		}
		tests = append(tests, LoadedTest{
			File:  relPath,
			Suite: suite.Name,
			Test:  test,
		})
	}
	return tests, nil
}
