package domain

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Family names one damage-factor table family. Each family holds one row per
// stage label.
type Family string

const (
	FamilySoybeanStandLoss               Family = "soybean_stand_loss"
	FamilySoybeanNodeLoss                Family = "soybean_node_loss"
	FamilySoybeanDefoliation             Family = "soybean_defoliation"
	FamilySoybeanNodeLossReproductive    Family = "soybean_node_loss_reproductive"
	FamilySoybeanDefoliationReproductive Family = "soybean_defoliation_reproductive"
	FamilySoybeanDefoliationPodFill      Family = "soybean_defoliation_pod_fill"
	FamilyWheatSpikeLoss                 Family = "wheat_spike_loss"
	FamilySunflowerStandLoss             Family = "sunflower_stand_loss"
	FamilySunflowerDefoliation           Family = "sunflower_defoliation"
	FamilyCornStandLoss                  Family = "corn_stand_loss"
	FamilyCornDefoliation                Family = "corn_defoliation"
	FamilyCornGrainLoss                  Family = "corn_grain_loss"
)

//go:embed tabledata/*.yaml
var embeddedTables embed.FS

// TableStore is an immutable set of lookup tables. It is safe for concurrent use.
type TableStore struct {
	rows map[Family]map[string][]float64
}

// tableFile is the on-disk shape of one crop's tables.
type tableFile struct {
	Crop     string                          `yaml:"crop"`
	Families map[Family]map[string][]float64 `yaml:"families"`
}

var defaultTables = sync.OnceValue(func() *TableStore {
	sub, err := fs.Sub(embeddedTables, "tabledata")
	if err != nil {
		panic(fmt.Sprintf("embedded tables: %v", err))
	}
	store, err := LoadTables(sub)
	if err != nil {
		panic(fmt.Sprintf("embedded tables: %v", err))
	}
	return store
})

// DefaultTables returns the tables embedded in the binary, parsed on first use.
// It panics if the embedded data is malformed.
func DefaultTables() *TableStore {
	return defaultTables()
}

// LoadTables parses every *.yaml file at the root of fsys into a TableStore.
// A (family, stage label) pair may be defined only once across files, and every
// value must lie in [0, 100].
func LoadTables(fsys fs.FS) (*TableStore, error) {
	paths, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list table files: %w", err)
	}
	if len(paths) == 0 {
		return nil, errors.New("no table files found")
	}
	sort.Strings(paths)

	store := &TableStore{rows: make(map[Family]map[string][]float64)}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file tableFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := store.merge(path, file); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (t *TableStore) merge(path string, file tableFile) error {
	for family, stages := range file.Families {
		if t.rows[family] == nil {
			t.rows[family] = make(map[string][]float64, len(stages))
		}
		for label, row := range stages {
			if _, dup := t.rows[family][label]; dup {
				return fmt.Errorf("%s: %s/%s defined twice", path, family, label)
			}
			for bucket, v := range row {
				if v < 0 || v > 100 {
					return fmt.Errorf("%s: %s/%s bucket %d: value %g outside [0, 100]", path, family, label, bucket, v)
				}
			}
			t.rows[family][label] = append([]float64(nil), row...)
		}
	}
	return nil
}

// Lookup returns the damage percentage for a bucket, or 0 when the family,
// stage label or bucket is absent.
func (t *TableStore) Lookup(family Family, stageLabel string, bucket int) float64 {
	if t == nil {
		return 0
	}
	row := t.rows[family][stageLabel]
	if bucket < 0 || bucket >= len(row) {
		return 0
	}
	return row[bucket]
}

// Has reports whether a row exists for the family and stage label.
func (t *TableStore) Has(family Family, stageLabel string) bool {
	if t == nil {
		return false
	}
	_, ok := t.rows[family][stageLabel]
	return ok
}
