package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the raw, versioned content artifact the catalog is built from.
// Level keys are kept as strings because that is how the content files spell them.
type Document struct {
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	// Names maps level -> category -> ordered celebrity names.
	Names map[string]map[string][]string `json:"names" yaml:"names"`
	// Records maps level -> celebrity name -> details.
	Records map[string]map[string]RecordData `json:"records" yaml:"records"`
	// Categories maps category -> definition.
	Categories map[string]CategoryData `json:"categories" yaml:"categories"`
}

// RecordData is the per-celebrity detail block of the data file.
type RecordData struct {
	Facts      []string `json:"facts" yaml:"facts"`
	Categories []string `json:"categories" yaml:"categories"`
}

// CategoryData is one entry of the categories file.
type CategoryData struct {
	Levels int `json:"levels" yaml:"levels"`
}

// Loader fetches the catalog document from its backing store.
type Loader interface {
	LoadCatalog(ctx context.Context) (Document, error)
}

// FileLoader reads the three YAML content files from disk.
type FileLoader struct {
	NamesPath      string
	DataPath       string
	CategoriesPath string
}

func NewFileLoader(namesPath, dataPath, categoriesPath string) *FileLoader {
	return &FileLoader{NamesPath: namesPath, DataPath: dataPath, CategoriesPath: categoriesPath}
}

func (l *FileLoader) LoadCatalog(_ context.Context) (Document, error) {
	var doc Document
	if err := readYAML(l.NamesPath, &doc.Names); err != nil {
		return Document{}, err
	}
	if err := readYAML(l.DataPath, &doc.Records); err != nil {
		return Document{}, err
	}
	// The categories file is optional; max levels then fall back to the names index.
	if l.CategoriesPath != "" {
		if err := readYAML(l.CategoriesPath, &doc.Categories); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
