package ipsmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFacilities_InnerJoin(t *testing.T) {
	tables, err := LoadTables(context.Background(), DefaultSources(fixtureDir))
	require.NoError(t, err)

	merged, err := MergeFacilities(tables.Colleges, tables.Lycees, tables.Directory)
	require.NoError(t, err)

	// The orphan college has no directory entry.
	assert.Len(t, merged, len(tables.Colleges)+len(tables.Lycees)-1)

	inDirectory := map[string]bool{}
	for _, e := range tables.Directory {
		inDirectory[e.UAI] = true
	}
	for _, f := range merged {
		assert.True(t, inDirectory[f.UAI], "merged facility %s has no directory entry", f.UAI)
		assert.Equal(t, f.UAI, f.Directory.UAI)
	}

	// Union order: colleges first, then lycées.
	assert.Equal(t, "0750001A", merged[0].UAI)
	assert.Equal(t, SourceLycee, merged[len(merged)-1].Source)

	// Directory name replaces the registry name.
	assert.Equal(t, "Collège A", merged[0].Name)
	assert.Equal(t, "Paris", merged[0].Directory.Commune)
}

func TestMergeFacilities_KeepsCrossRegistryDuplicates(t *testing.T) {
	colleges := []Facility{{UAI: "X", Year: "2023"}}
	lycees := []Facility{{UAI: "X", Year: "2023"}}
	dir := []DirectoryEntry{{UAI: "X", Name: "Cité scolaire"}}

	merged, err := MergeFacilities(colleges, lycees, dir)
	require.NoError(t, err)
	assert.Len(t, merged, 2)
}

func TestMergeFacilities_JoinIntegrity(t *testing.T) {
	colleges := []Facility{{UAI: "0750001A"}, {UAI: "0750002B"}}
	dir := []DirectoryEntry{{UAI: "750001A"}, {UAI: "750002B"}}

	_, err := MergeFacilities(colleges, nil, dir)
	assert.ErrorIs(t, err, ErrJoinIntegrity)
}

func TestMergeFacilities_EmptyInputs(t *testing.T) {
	merged, err := MergeFacilities(nil, nil, []DirectoryEntry{{UAI: "A"}})
	require.NoError(t, err)
	assert.Empty(t, merged)

	merged, err = MergeFacilities([]Facility{{UAI: "A"}}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, merged)
}
