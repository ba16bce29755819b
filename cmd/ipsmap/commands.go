package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ipsmap/ipsmap"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	v        *viper.Viper
	cfgPath  string
	cfg      *cliConfig
	log      *zap.Logger
	pipeline *ipsmap.Pipeline
}

func newRootCmd() *cobra.Command {
	a := &app{v: newViper()}

	root := &cobra.Command{
		Use:           "ipsmap",
		Short:         "Join school IPS with departmental abstention for map rendering",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "YAML config file")
	pf.String("data-dir", "./data", "directory holding the source files")
	pf.String("departments-crs", "", "CRS of the boundary file when it declares none (EPSG:4326, EPSG:2154)")
	pf.String("encoding", ipsmap.EncodingUTF8, "text encoding of the CSV files (utf-8, windows-1252)")
	pf.Bool("show-credits", false, "print the introduction and dataset credits around the output")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")
	for key, flag := range map[string]string{
		"data_dir":        "data-dir",
		"departments_crs": "departments-crs",
		"encoding":        "encoding",
		"show_credits":    "show-credits",
		"log_level":       "log-level",
		"log_format":      "log-format",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(a.optionsCmd(), a.renderCmd(), a.validateCmd(), a.watchCmd())
	return root
}

func (a *app) init() error {
	cfg, err := loadConfig(a.v, a.cfgPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	a.pipeline = ipsmap.New(
		ipsmap.WithSources(cfg.sources()),
		ipsmap.WithLogger(log),
		ipsmap.WithClusterPrecision(cfg.ClusterPrecision),
	)
	return nil
}

func (a *app) optionsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the school years, facility types and elections available",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := a.pipeline.Dataset(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(out, ds.Options)
			case "yaml":
				return yaml.NewEncoder(out).Encode(ds.Options)
			}
			t := tablewriter.NewWriter(out)
			t.SetHeader([]string{"Selector", "Values"})
			t.SetAutoWrapText(false)
			t.Append([]string{"rentree_scolaire", fmt.Sprint(ds.Options.Years)})
			t.Append([]string{"Type_etablissement", fmt.Sprint(ds.Options.Types)})
			t.Append([]string{"id_election", fmt.Sprint(ds.Options.Elections)})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, json, yaml)")
	return cmd
}

// renderFlags are shared by render and watch.
type renderFlags struct {
	year        string
	types       []string
	election    string
	format      string
	markers     string
	departments string
}

func (f *renderFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.year, "year", "", "school year (rentree_scolaire); default: first available")
	fs.StringSliceVar(&f.types, "type", nil, "facility type, repeatable; default: every type")
	fs.StringVar(&f.election, "election", "", "election identifier; default: first available")
	fs.StringVar(&f.format, "format", "table", "output format (table, json, yaml, geojson)")
	fs.StringVar(&f.markers, "markers", "", "write the marker GeoJSON to this file")
	fs.StringVar(&f.departments, "departments", "", "write the department GeoJSON to this file")
}

func (a *app) renderCmd() *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Compute per-department IPS statistics and abstention for a selection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.render(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) render(ctx context.Context, out io.Writer, f *renderFlags) error {
	ds, err := a.pipeline.Dataset(ctx)
	if err != nil {
		return err
	}
	sel := a.selection(ds.Options, f)

	res, err := a.pipeline.Render(ctx, sel)
	if err != nil {
		return err
	}

	if a.cfg.ShowCredits {
		printIntro(out)
	}
	if err := writeResult(out, res, f.format); err != nil {
		return err
	}
	if f.markers != "" {
		if err := writeGeoJSONFile(f.markers, res.MarkersGeoJSON); err != nil {
			return err
		}
	}
	if f.departments != "" {
		if err := writeGeoJSONFile(f.departments, res.DepartmentsGeoJSON); err != nil {
			return err
		}
	}
	if a.cfg.ShowCredits {
		printCredits(out)
	}
	return nil
}

// selection fills unset selectors with the defaults and warns about values
// the data does not contain.
func (a *app) selection(opts ipsmap.SelectorOptions, f *renderFlags) ipsmap.Selection {
	sel := opts.Default()
	if f.year != "" {
		sel.Year = f.year
		a.warnUnknown("year", f.year, opts.Years)
	}
	if len(f.types) > 0 {
		sel.Types = f.types
		for _, t := range f.types {
			a.warnUnknown("type", t, opts.Types)
		}
	}
	if f.election != "" {
		sel.ElectionID = f.election
		a.warnUnknown("election", f.election, opts.Elections)
	}
	return sel
}

func (a *app) warnUnknown(selector, value string, options []string) {
	for _, o := range options {
		if o == value {
			return
		}
	}
	fields := []zap.Field{zap.String("selector", selector), zap.String("value", value)}
	if s := ipsmap.Suggest(value, options); s != "" {
		fields = append(fields, zap.String("did_you_mean", s))
	}
	a.log.Warn("value not present in data", fields...)
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the source files load and join",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := a.pipeline.Dataset(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := ipsmap.Validate(ds)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Facilities:  %d (%d with coordinates, %d inside a department)\n", rep.Facilities, rep.WithPoint, rep.Located)
			fmt.Fprintf(out, "Departments: %d\n", rep.Departments)
			fmt.Fprintf(out, "Elections:   %d (%d department codes)\n", rep.Elections, rep.ElectionDepts)
			for _, code := range rep.UnknownElectDepts {
				name := ipsmap.DepartmentName(code)
				if name == "" {
					name = "not a department code"
				}
				fmt.Fprintf(out, "Election department without boundary: %s (%s)\n", code, name)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Render, then render again whenever a source file changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			if err := a.render(ctx, out, f); err != nil {
				return err
			}
			return a.pipeline.Store().Watch(ctx, func(path string) {
				if err := a.render(ctx, out, f); err != nil {
					// Source files may be mid-write; the next event retries.
					a.log.Error("render after change failed", zap.String("path", path), zap.Error(err))
				}
			})
		},
	}
	f.register(cmd)
	return cmd
}

// resultDoc is the json/yaml shape of a render.
type resultDoc struct {
	RenderID  string                   `json:"render_id" yaml:"render_id"`
	Selection ipsmap.Selection         `json:"selection" yaml:"selection"`
	Filtered  int                      `json:"filtered" yaml:"filtered"`
	Joined    int                      `json:"joined" yaml:"joined"`
	Stats     []ipsmap.DepartmentStats `json:"stats" yaml:"stats"`
	Clusters  []ipsmap.MarkerCluster   `json:"clusters" yaml:"clusters"`
}

func writeResult(out io.Writer, res *ipsmap.Result, format string) error {
	doc := resultDoc{
		RenderID:  res.RenderID,
		Selection: res.Selection,
		Filtered:  res.Filtered,
		Joined:    len(res.Facilities),
		Stats:     res.Stats,
		Clusters:  res.Clusters,
	}
	switch format {
	case "json":
		return writeJSON(out, doc)
	case "yaml":
		return yaml.NewEncoder(out).Encode(doc)
	case "geojson":
		b, err := res.DepartmentsGeoJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	case "table", "":
		return writeStatsTable(out, res)
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeStatsTable(out io.Writer, res *ipsmap.Result) error {
	if res.Empty() {
		_, err := fmt.Fprintln(out, "No facility matches this selection.")
		return err
	}
	t := tablewriter.NewWriter(out)
	t.SetHeader([]string{"Dept Code", "Facilities", "Min IPS", "Median IPS", "Max IPS", "Abstention Rate"})
	for _, s := range res.Stats {
		t.Append([]string{
			s.Code,
			strconv.Itoa(s.Count),
			formatFloat(s.Min),
			formatFloat(s.Median),
			formatFloat(s.Max),
			formatFloat(s.AbstentionRate),
		})
	}
	t.SetFooter([]string{"", strconv.Itoa(len(res.Facilities)), "", "", "", ""})
	t.Render()
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeGeoJSONFile(path string, encode func() ([]byte, error)) error {
	b, err := encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
