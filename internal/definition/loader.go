// Package definition loads form and workflow definitions from YAML files,
// validates them, and serves them from a registry swapped atomically on
// reload.
package definition

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Loader scans directories for YAML definition files, parses them, and computes
// SHA-256 checksums.
type Loader struct{}

// NewLoader creates a new definition Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadAll recursively scans directories for *.yaml and *.yml files and parses
// each into a DefinitionFile. Files are returned in path order.
func (l *Loader) LoadAll(directories []string) ([]model.DefinitionFile, error) {
	var paths []string

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	sort.Strings(paths)
	defs := make([]model.DefinitionFile, 0, len(paths))
	for _, path := range paths {
		def, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile parses a definition file. A file may hold several YAML documents
// separated by "---"; their forms and workflows are concatenated and they
// must agree on the version. The checksum covers the raw file bytes.
func (l *Loader) LoadFile(path string) (model.DefinitionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.DefinitionFile{}, fmt.Errorf("reading %s: %w", path, err)
	}

	def := model.DefinitionFile{
		Checksum:   fmt.Sprintf("%x", sha256.Sum256(data)),
		SourceFile: path,
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for n := 0; ; n++ {
		var doc model.DefinitionFile
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.DefinitionFile{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		switch {
		case def.Version == "":
			def.Version = doc.Version
		case doc.Version != "" && doc.Version != def.Version:
			return model.DefinitionFile{}, fmt.Errorf("parsing %s: document %d has version %q, expected %q", path, n, doc.Version, def.Version)
		}
		def.Forms = append(def.Forms, doc.Forms...)
		def.Workflows = append(def.Workflows, doc.Workflows...)
	}
	return def, nil
}
