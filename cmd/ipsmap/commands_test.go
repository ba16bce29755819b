package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ipsmap/ipsmap"
)

const testDataDir = "../../testdata"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--data-dir", testDataDir, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRender_JSON(t *testing.T) {
	out, err := run(t, "render", "--year", "2023", "--type", "Collège", "--election", "2022-presidential", "--format", "json")
	require.NoError(t, err)

	var doc resultDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.NotEmpty(t, doc.RenderID)
	assert.Equal(t, ipsmap.Selection{Year: "2023", Types: []string{"Collège"}, ElectionID: "2022-presidential"}, doc.Selection)
	require.Len(t, doc.Stats, 2)
	assert.Equal(t, ipsmap.DepartmentStats{Code: "75", Min: 95, Median: 95, Max: 95, Count: 1, AbstentionRate: 25.3}, doc.Stats[1])
	assert.Contains(t, out, `"Abstention_Rate": 25.3`)
}

func TestRender_Defaults(t *testing.T) {
	out, err := run(t, "render", "--format", "yaml")
	require.NoError(t, err)

	var doc resultDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "2023", doc.Selection.Year)
	assert.Equal(t, "2022-presidential", doc.Selection.ElectionID)
	assert.Len(t, doc.Stats, 3)
	assert.Equal(t, 6, doc.Joined)
}

func TestRender_Table(t *testing.T) {
	out, err := run(t, "render", "--show-credits")
	require.NoError(t, err)
	assert.Contains(t, out, "DEPT CODE")
	assert.Contains(t, out, "97.50")
	assert.Contains(t, out, "25.30")
	assert.Contains(t, out, "data.education.gouv.fr")
}

func TestRender_EmptySelection(t *testing.T) {
	out, err := run(t, "render", "--year", "1999")
	require.NoError(t, err)
	assert.Contains(t, out, "No facility matches this selection.")
}

func TestRender_GeoJSONFiles(t *testing.T) {
	dir := t.TempDir()
	markers := filepath.Join(dir, "markers.geojson")
	depts := filepath.Join(dir, "departments.geojson")

	_, err := run(t, "render", "--markers", markers, "--departments", depts, "--format", "geojson")
	require.NoError(t, err)

	for _, p := range []string{markers, depts} {
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		var fc map[string]interface{}
		require.NoError(t, json.Unmarshal(b, &fc))
		assert.Equal(t, "FeatureCollection", fc["type"])
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := run(t, "render", "--format", "csv")
	assert.ErrorContains(t, err, "unknown format")
}

func TestOptions(t *testing.T) {
	out, err := run(t, "options", "--format", "json")
	require.NoError(t, err)

	var opts ipsmap.SelectorOptions
	require.NoError(t, json.Unmarshal([]byte(out), &opts))
	assert.Equal(t, []string{"2023", "2022"}, opts.Years)
	assert.Equal(t, []string{"2022-presidential", "2017-legislatives"}, opts.Elections)
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "OK"), out)
}

func TestMissingData(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--data-dir", t.TempDir(), "--log-level", "error", "validate"})
	err := root.Execute()
	assert.ErrorIs(t, err, ipsmap.ErrLoad)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ipsmap.yaml")
	abs, err := filepath.Abs(testDataDir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_dir: "+abs+"\ncluster_precision: 2\nlog_level: error\n"), 0644))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "render", "--format", "json"})
	require.NoError(t, root.Execute())

	var doc resultDoc
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Clusters, 2)
	assert.Equal(t, "sp", doc.Clusters[0].Geohash)
}

func TestLoadConfig_BadCRS(t *testing.T) {
	v := newViper()
	v.Set("departments_crs", "EPSG:3857")
	_, err := loadConfig(v, "")
	assert.ErrorIs(t, err, ipsmap.ErrCRS)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		log, err := newLogger("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, log)
	}
	_, err := newLogger("loud", "console")
	assert.Error(t, err)
}

func TestPrintCredits(t *testing.T) {
	var out bytes.Buffer
	printCredits(&out)
	text := out.String()

	assert.Len(t, datasetSources, 6)
	for _, s := range datasetSources {
		assert.Contains(t, text, s.Name)
		assert.Contains(t, text, s.URL)
	}
	assert.Contains(t, text, "Bureaux de vote et adresses de leurs électeurs")
	assert.Contains(t, text, "Base des codes postaux")
	for _, p := range append(append([]creditLink(nil), mapDesigners...), mapDevelopers...) {
		assert.Contains(t, text, p.Name)
	}
}
