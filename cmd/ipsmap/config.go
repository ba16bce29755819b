package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ipsmap/ipsmap"
)

// envPrefix is the environment variable prefix of every setting
// (IPSMAP_DATA_DIR, IPSMAP_LOG_LEVEL, ...).
const envPrefix = "IPSMAP"

// cliConfig is the merged result of the config file, environment and flags.
type cliConfig struct {
	DataDir          string `mapstructure:"data_dir"`
	Colleges         string `mapstructure:"colleges"`
	Lycees           string `mapstructure:"lycees"`
	Directory        string `mapstructure:"directory"`
	Elections        string `mapstructure:"elections"`
	Departments      string `mapstructure:"departments"`
	DepartmentsCRS   string `mapstructure:"departments_crs"`
	Encoding         string `mapstructure:"encoding"`
	ShowCredits      bool   `mapstructure:"show_credits"`
	LogLevel         string `mapstructure:"log_level"`
	LogFormat        string `mapstructure:"log_format"`
	ClusterPrecision int    `mapstructure:"cluster_precision"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("data_dir", "./data")
	v.SetDefault("encoding", ipsmap.EncodingUTF8)
	v.SetDefault("show_credits", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("cluster_precision", ipsmap.DefaultClusterPrecision)
	// Declared so AutomaticEnv picks them up on Unmarshal.
	for _, k := range []string{"colleges", "lycees", "directory", "elections", "departments", "departments_crs"} {
		v.SetDefault(k, "")
	}
	return v
}

// loadConfig reads the optional YAML file then unmarshals the merged settings.
func loadConfig(v *viper.Viper, path string) (*cliConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", path, err)
		}
	}
	cfg := &cliConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if _, err := ipsmap.ParseCRS(cfg.DepartmentsCRS); err != nil {
		return nil, fmt.Errorf("config: departments_crs: %w", err)
	}
	return cfg, nil
}

// sources resolves the input paths: explicit paths win, relative ones are
// taken from data_dir, missing ones get the default file name.
func (c *cliConfig) sources() ipsmap.Sources {
	src := ipsmap.DefaultSources(c.DataDir)
	pick := func(dst *string, v string) {
		if v == "" {
			return
		}
		if !filepath.IsAbs(v) {
			v = filepath.Join(c.DataDir, v)
		}
		*dst = v
	}
	pick(&src.Colleges, c.Colleges)
	pick(&src.Lycees, c.Lycees)
	pick(&src.Directory, c.Directory)
	pick(&src.Elections, c.Elections)
	pick(&src.Departments, c.Departments)
	src.DepartmentsCRS = c.DepartmentsCRS
	src.Encoding = c.Encoding
	return src
}

// newLogger builds the zap logger: "json" for production encoding, anything
// else for the human-readable console encoder. Logs go to stderr so stdout
// stays clean for rendered output.
func newLogger(level, format string) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(format, "json") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("config: log_level: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
