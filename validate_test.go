package ipsmap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	ds, err := PrepareDataset(context.Background(), DefaultSources(fixtureDir), nil)
	require.NoError(t, err)

	rep, err := Validate(ds)
	require.NoError(t, err)
	assert.Equal(t, 12, rep.Facilities)
	assert.Equal(t, 11, rep.WithPoint, "H has no coordinates")
	assert.Equal(t, 10, rep.Located, "G lies on a shared edge")
	assert.Equal(t, 3, rep.Departments)
	assert.Equal(t, 2, rep.Elections)
	assert.Equal(t, 3, rep.ElectionDepts)
	assert.Empty(t, rep.UnknownElectDepts)
	assert.Empty(t, rep.InvalidElectDepts)
}

func TestValidate_Failures(t *testing.T) {
	ds, err := PrepareDataset(context.Background(), DefaultSources(fixtureDir), nil)
	require.NoError(t, err)

	t.Run("no facilities", func(t *testing.T) {
		broken := *ds
		broken.Facilities = nil
		_, err := Validate(&broken)
		assert.ErrorIs(t, err, ErrLoad)
	})

	t.Run("no elections", func(t *testing.T) {
		broken := *ds
		broken.Options.Elections = nil
		_, err := Validate(&broken)
		assert.ErrorIs(t, err, ErrLoad)
	})

	t.Run("election codes in another format", func(t *testing.T) {
		broken := *ds
		broken.Elections = []ElectionResult{{ElectionID: "x", DepartmentCode: "D75"}, {ElectionID: "x", DepartmentCode: "D13"}}
		rep, err := Validate(&broken)
		assert.ErrorIs(t, err, ErrJoinIntegrity)
		assert.ElementsMatch(t, []string{"D75", "D13"}, rep.UnknownElectDepts)
		assert.ElementsMatch(t, []string{"D75", "D13"}, rep.InvalidElectDepts)
	})

	t.Run("overseas codes are only reported", func(t *testing.T) {
		broken := *ds
		broken.Elections = append(append([]ElectionResult(nil), ds.Elections...), ElectionResult{ElectionID: "x", DepartmentCode: "971"})
		rep, err := Validate(&broken)
		require.NoError(t, err)
		assert.Equal(t, []string{"971"}, rep.UnknownElectDepts)
		assert.Empty(t, rep.InvalidElectDepts)
	})
}

func TestPrepareDataset_JoinIntegrity(t *testing.T) {
	t.Run("election codes in another format", func(t *testing.T) {
		dir := copyFixtures(t)
		writeFile(t, dir, "finalresultelec.csv",
			"id_election,code_du_departement,Abstention_Rate\n2022-presidential,D75,25.3\n2022-presidential,D13,28.1\n")
		_, err := PrepareDataset(context.Background(), DefaultSources(dir), nil)
		assert.ErrorIs(t, err, ErrJoinIntegrity)
	})

	t.Run("latitude and longitude swapped", func(t *testing.T) {
		dir := copyFixtures(t)
		for _, name := range []string{"colleges.csv", "lycees.csv"} {
			b, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			swapped := strings.Replace(string(b), ";lat;long\n", ";long;lat\n", 1)
			require.NotEqual(t, string(b), swapped)
			writeFile(t, dir, name, swapped)
		}
		_, err := PrepareDataset(context.Background(), DefaultSources(dir), nil)
		assert.ErrorIs(t, err, ErrJoinIntegrity)
	})
}
