package domain

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTables(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml": {Data: []byte("crop: soja\nfamilies:\n  soybean_stand_loss:\n    v1-v5: [0, 1.5, 3]\n")},
		"b.yaml": {Data: []byte("crop: trigo\nfamilies:\n  wheat_spike_loss:\n    \"Lechoso (Z.70/79)\": [0, 2]\n")},
		"README": {Data: []byte("ignored")},
	}

	store, err := LoadTables(fsys)
	require.NoError(t, err)

	assert.Equal(t, 1.5, store.Lookup(FamilySoybeanStandLoss, "v1-v5", 1))
	assert.Equal(t, 2.0, store.Lookup(FamilyWheatSpikeLoss, "Lechoso (Z.70/79)", 1))
	assert.True(t, store.Has(FamilySoybeanStandLoss, "v1-v5"))
	assert.False(t, store.Has(FamilySoybeanStandLoss, "v6-v8"))
}

func TestLoadTables_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "no files",
			fsys:    fstest.MapFS{},
			wantErr: "no table files",
		},
		{
			name: "malformed yaml",
			fsys: fstest.MapFS{
				"a.yaml": {Data: []byte("families: [")},
			},
			wantErr: "parse a.yaml",
		},
		{
			name: "value out of range",
			fsys: fstest.MapFS{
				"a.yaml": {Data: []byte("families:\n  corn_defoliation:\n    V5: [0, 101]\n")},
			},
			wantErr: "outside [0, 100]",
		},
		{
			name: "duplicate row",
			fsys: fstest.MapFS{
				"a.yaml": {Data: []byte("families:\n  corn_defoliation:\n    V5: [0, 1]\n")},
				"b.yaml": {Data: []byte("families:\n  corn_defoliation:\n    V5: [0, 2]\n")},
			},
			wantErr: "defined twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTables(tt.fsys)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTableStore_LookupMissing(t *testing.T) {
	store := DefaultTables()

	assert.Equal(t, 0.0, store.Lookup(FamilySoybeanStandLoss, "v1-v5", -1))
	assert.Equal(t, 0.0, store.Lookup(FamilySoybeanStandLoss, "v1-v5", 101))
	assert.Equal(t, 0.0, store.Lookup(FamilySoybeanStandLoss, "r8", 10))
	assert.Equal(t, 0.0, store.Lookup("no_such_family", "v1-v5", 10))
	assert.Equal(t, 0.0, store.Lookup(FamilyCornGrainLoss, "R1", 41))

	var nilStore *TableStore
	assert.Equal(t, 0.0, nilStore.Lookup(FamilySoybeanStandLoss, "v1-v5", 10))
	assert.False(t, nilStore.Has(FamilySoybeanStandLoss, "v1-v5"))
}

func TestDefaultTables_Shape(t *testing.T) {
	store := DefaultTables()
	assert.Same(t, store, DefaultTables())

	for family, stages := range store.rows {
		for label, row := range stages {
			require.NotEmpty(t, row, "%s/%s", family, label)
			assert.Equal(t, 0.0, row[0], "%s/%s bucket 0 contributes nothing", family, label)
			for i := 1; i < len(row); i++ {
				assert.GreaterOrEqual(t, row[i], row[i-1], "%s/%s is non-decreasing at %d", family, label, i)
			}
		}
	}

	assert.Equal(t, 0.2, store.Lookup(FamilySoybeanStandLoss, "v1-v5", 10))
	assert.Equal(t, 25.0, store.Lookup(FamilyCornGrainLoss, "R1", 10))
}
