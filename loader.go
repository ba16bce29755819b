package ipsmap

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Delimiters of the source files. They are fixed per file; a file written
// with another delimiter is rejected rather than parsed into one column.
const (
	facilityDelimiter  = ';'
	directoryDelimiter = ';'
	electionDelimiter  = ','
)

// Default file names inside the data directory.
const (
	DefaultCollegesFile    = "colleges.csv"
	DefaultLyceesFile      = "lycees.csv"
	DefaultDirectoryFile   = "annuaire.csv"
	DefaultElectionsFile   = "finalresultelec.csv"
	DefaultDepartmentsFile = "contour-des-departements.geojson"
)

// Supported text encodings for the delimited files.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
)

// Sources lists the input files of the pipeline.
type Sources struct {
	Colleges       string // college facility file, ';'
	Lycees         string // lycée facility file, ';'
	Directory      string // facility directory, ';'
	Elections      string // election results, ','
	Departments    string // department boundaries, GeoJSON
	DepartmentsCRS string // CRS of the boundary file when it does not declare one ("" = WGS84)
	Encoding       string // text encoding of the delimited files ("" = UTF-8)
}

// DefaultSources returns the conventional file names under dir.
func DefaultSources(dir string) Sources {
	return Sources{
		Colleges:    filepath.Join(dir, DefaultCollegesFile),
		Lycees:      filepath.Join(dir, DefaultLyceesFile),
		Directory:   filepath.Join(dir, DefaultDirectoryFile),
		Elections:   filepath.Join(dir, DefaultElectionsFile),
		Departments: filepath.Join(dir, DefaultDepartmentsFile),
	}
}

// Paths returns every input path, in a stable order.
func (s Sources) Paths() []string {
	return []string{s.Colleges, s.Lycees, s.Directory, s.Elections, s.Departments}
}

// Tables holds the four delimited inputs after parsing.
type Tables struct {
	Colleges  []Facility
	Lycees    []Facility
	Directory []DirectoryEntry
	Elections []ElectionResult
}

// LoadTables reads the four delimited files. Files are read concurrently; the
// first failure, or ctx being done, stops the remaining reads.
func LoadTables(ctx context.Context, src Sources) (*Tables, error) {
	t := &Tables{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		t.Colleges, err = loadFacilities(ctx, src.Colleges, src.Encoding, SourceCollege)
		return err
	})
	g.Go(func() error {
		var err error
		t.Lycees, err = loadFacilities(ctx, src.Lycees, src.Encoding, SourceLycee)
		return err
	})
	g.Go(func() error {
		var err error
		t.Directory, err = loadDirectory(ctx, src.Directory, src.Encoding)
		return err
	})
	g.Go(func() error {
		var err error
		t.Elections, err = loadElections(ctx, src.Elections, src.Encoding)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

// header maps column names to positions.
type header map[string]int

func newHeader(cols []string) header {
	h := make(header, len(cols))
	for i, c := range cols {
		c = strings.TrimSpace(c)
		if _, dup := h[c]; !dup {
			h[c] = i
		}
	}
	return h
}

// index returns the position of the first matching column name, trying an
// exact match first and a case-insensitive one second. Returns -1 if absent.
func (h header) index(names ...string) int {
	for _, n := range names {
		if i, ok := h[n]; ok {
			return i
		}
	}
	for _, n := range names {
		for col, i := range h {
			if strings.EqualFold(col, n) {
				return i
			}
		}
	}
	return -1
}

// delimitedFile is an open delimited source with its parsed header.
type delimitedFile struct {
	ctx    context.Context
	path   string
	f      *os.File
	r      *csv.Reader
	header header
	cols   []string
}

// openDelimited opens path, decodes it, reads the header and checks that
// every required column is present.
func openDelimited(ctx context.Context, path, encoding string, comma rune, required ...string) (*delimitedFile, error) {
	if path == "" {
		return nil, loadErrorf(path, "no path configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var dec transform.Transformer
	switch strings.ToLower(encoding) {
	case "", EncodingUTF8, "utf8":
		dec = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	case EncodingWindows1252, "cp1252", "latin1", "iso-8859-1":
		dec = charmap.Windows1252.NewDecoder()
	default:
		f.Close()
		return nil, loadErrorf(path, "unsupported encoding %q", encoding)
	}

	r := csv.NewReader(transform.NewReader(f, dec))
	r.Comma = comma
	r.LazyQuotes = true

	cols, err := r.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, loadErrorf(path, "empty file")
		}
		return nil, loadErrorf(path, "reading header: %w", err)
	}
	if len(cols) == 1 && len(required) > 1 {
		f.Close()
		return nil, loadErrorf(path, "header parsed into a single column %q: delimiter mismatch, expected %q", cols[0], string(comma))
	}

	h := newHeader(cols)
	for _, req := range required {
		if h.index(req) < 0 {
			f.Close()
			return nil, loadErrorf(path, "missing required column %q", req)
		}
	}
	return &delimitedFile{ctx: ctx, path: path, f: f, r: r, header: h, cols: cols}, nil
}

// each calls fn for every data row. line is the 1-based line number.
// It stops with the context error once d.ctx is done.
func (d *delimitedFile) each(fn func(line int, rec []string) error) error {
	defer d.f.Close()
	line := 1
	for {
		if err := d.ctx.Err(); err != nil {
			return fmt.Errorf("reading %s: %w", d.path, err)
		}
		rec, err := d.r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return loadErrorf(d.path, "line %d: %w", line, err)
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

// field returns the trimmed value at column i, or "" when i is -1.
func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parseDecimal parses a decimal cell. Empty and NA-like cells are missing
// (ok == false, err == nil). Decimal commas are accepted.
func parseDecimal(s string) (v float64, ok bool, err error) {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "n/a":
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

func loadFacilities(ctx context.Context, path, encoding string, source FacilitySource) ([]Facility, error) {
	d, err := openDelimited(ctx, path, encoding, facilityDelimiter,
		"uai", "lat", "long", "ips", "rentree_scolaire", "Type_etablissement")
	if err != nil {
		return nil, err
	}

	var (
		iUAI  = d.header.index("uai")
		iLat  = d.header.index("lat")
		iLong = d.header.index("long")
		iIPS  = d.header.index("ips")
		iYear = d.header.index("rentree_scolaire")
		iType = d.header.index("Type_etablissement")
		iName = d.header.index("nom", "nom_etablissement")
	)

	var out []Facility
	seen := make(map[string]int)
	err = d.each(func(line int, rec []string) error {
		fac := Facility{
			UAI:    field(rec, iUAI),
			Name:   field(rec, iName),
			Type:   normalizeLabel(field(rec, iType)),
			Year:   normalizeLabel(field(rec, iYear)),
			Source: source,
		}

		ips, ok, err := parseDecimal(field(rec, iIPS))
		if err != nil {
			return loadErrorf(path, "line %d: ips %q: %w", line, field(rec, iIPS), err)
		}
		if ok {
			fac.IPS = &ips
		}

		lat, okLat, errLat := parseDecimal(field(rec, iLat))
		lng, okLng, errLng := parseDecimal(field(rec, iLong))
		if errLat != nil || errLng != nil {
			return loadErrorf(path, "line %d: coordinates %q,%q: %w", line,
				field(rec, iLat), field(rec, iLong), errors.Join(errLat, errLng))
		}
		if okLat && okLng {
			fac.Latitude, fac.Longitude, fac.HasCoords = lat, lng, true
		}

		if fac.UAI != "" {
			key := fac.UAI + "\x00" + fac.Year
			if prev, dup := seen[key]; dup {
				return loadErrorf(path, "line %d: duplicate uai %q for school year %q (first seen line %d)", line, fac.UAI, fac.Year, prev)
			}
			seen[key] = line
		}
		out = append(out, fac)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadDirectory(ctx context.Context, path, encoding string) ([]DirectoryEntry, error) {
	d, err := openDelimited(ctx, path, encoding, directoryDelimiter, "uai")
	if err != nil {
		return nil, err
	}

	var (
		iUAI     = d.header.index("uai", "identifiant_de_l_etablissement")
		iName    = d.header.index("nom", "nom_etablissement")
		iCommune = d.header.index("nom_commune", "commune")
		iPostal  = d.header.index("code_postal")
		iDept    = d.header.index("code_departement", "code_du_departement")
	)
	known := map[int]bool{iUAI: true, iName: true, iCommune: true, iPostal: true, iDept: true}

	var out []DirectoryEntry
	seen := make(map[string]int)
	err = d.each(func(line int, rec []string) error {
		e := DirectoryEntry{
			UAI:        field(rec, iUAI),
			Name:       field(rec, iName),
			Commune:    field(rec, iCommune),
			PostalCode: field(rec, iPostal),
			Attributes: make(map[string]string),
		}
		if dept := field(rec, iDept); dept != "" {
			e.DepartmentCode = NormalizeDepartmentCode(dept)
		}
		if e.UAI == "" {
			return nil
		}
		if prev, dup := seen[e.UAI]; dup {
			return loadErrorf(path, "line %d: duplicate uai %q (first seen line %d)", line, e.UAI, prev)
		}
		seen[e.UAI] = line
		for i, col := range d.cols {
			if known[i] || i >= len(rec) {
				continue
			}
			e.Attributes[strings.TrimSpace(col)] = strings.TrimSpace(rec[i])
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadElections(ctx context.Context, path, encoding string) ([]ElectionResult, error) {
	d, err := openDelimited(ctx, path, encoding, electionDelimiter,
		"id_election", "code_du_departement", "Abstention_Rate")
	if err != nil {
		return nil, err
	}

	var (
		iID   = d.header.index("id_election")
		iDept = d.header.index("code_du_departement")
		iRate = d.header.index("Abstention_Rate")
	)

	var out []ElectionResult
	seen := make(map[string]int)
	err = d.each(func(line int, rec []string) error {
		rate, ok, err := parseDecimal(field(rec, iRate))
		if err != nil || !ok {
			return loadErrorf(path, "line %d: Abstention_Rate %q is not a number", line, field(rec, iRate))
		}
		r := ElectionResult{
			ElectionID:     normalizeLabel(field(rec, iID)),
			DepartmentCode: NormalizeDepartmentCode(field(rec, iDept)),
			AbstentionRate: rate,
		}
		key := r.ElectionID + "\x00" + r.DepartmentCode
		if prev, dup := seen[key]; dup {
			return loadErrorf(path, "line %d: duplicate result for election %q department %q (first seen line %d)",
				line, r.ElectionID, r.DepartmentCode, prev)
		}
		seen[key] = line
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// describe is used in log lines.
func (t *Tables) describe() string {
	return fmt.Sprintf("colleges=%d lycees=%d directory=%d elections=%d",
		len(t.Colleges), len(t.Lycees), len(t.Directory), len(t.Elections))
}
