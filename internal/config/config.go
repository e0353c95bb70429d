package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Navigator backends accepted in site.backend.
const (
	BackendBrowser = "browser"
	BackendStatic  = "static"
)

type Settings struct {
	Agency   string `yaml:"agency"`
	Filename string `yaml:"filename"`
}

type SiteConfig struct {
	URL         string `yaml:"url"`
	Backend     string `yaml:"backend"`
	ShowBrowser bool   `yaml:"show_browser"`
	UserAgent   string `yaml:"user_agent"`
}

type OutputConfig struct {
	Dir       string `yaml:"dir"`
	CSVReport string `yaml:"csv_report"`
}

type DBConfig struct {
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Runs    string `yaml:"runs"`
		Matches string `yaml:"matches"`
	} `yaml:"collections"`
}

type LogicConfig struct {
	PageTimeoutSec     int    `yaml:"page_timeout_sec"`
	ButtonTimeoutSec   int    `yaml:"button_timeout_sec"`
	DownloadTimeoutSec int    `yaml:"download_timeout_sec"`
	PollIntervalMS     int    `yaml:"poll_interval_ms"`
	RequestTimeoutSec  int    `yaml:"request_timeout_sec"`
	PDFEngine          string `yaml:"pdf_engine"`
	Schedule           string `yaml:"schedule"`
}

type RobotConfig struct {
	Settings Settings     `yaml:"settings"`
	Site     SiteConfig   `yaml:"site"`
	Output   OutputConfig `yaml:"output"`
	Logic    LogicConfig  `yaml:"logic"`
	DB       DBConfig     `yaml:"db"`
}

// LoadConfig reads path, merges <name>.local.<ext> next to it when present,
// applies environment overrides (a .env file beside path is loaded first) and
// validates the result.
func LoadConfig(path string) (*RobotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg RobotConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	localPath := localName(path)
	localData, err := os.ReadFile(localPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if len(localData) > 0 {
		var override RobotConfig
		if err := yaml.Unmarshal(localData, &override); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", localPath, err)
		}
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return nil, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func localName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func (c *RobotConfig) applyEnv() {
	overrides := map[string]*string{
		"ITDASH_AGENCY":        &c.Settings.Agency,
		"ITDASH_FILENAME":      &c.Settings.Filename,
		"ITDASH_OUTPUT_DIR":    &c.Output.Dir,
		"ITDASH_DB_CONNECTION": &c.DB.Connection,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
}

func (c *RobotConfig) applyDefaults() {
	setDefault(&c.Site.URL, "https://itdashboard.gov/")
	setDefault(&c.Site.Backend, BackendBrowser)
	setDefault(&c.Site.UserAgent, "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	setDefault(&c.Output.Dir, "output")
	setDefault(&c.Output.CSVReport, "reconciliation.csv")
	setDefault(&c.Logic.PDFEngine, "native")
	setDefault(&c.DB.Database, "itdash")
	setDefault(&c.DB.Collections.Runs, "runs")
	setDefault(&c.DB.Collections.Matches, "matches")

	setDefaultInt(&c.Logic.PageTimeoutSec, 60)
	setDefaultInt(&c.Logic.ButtonTimeoutSec, 30)
	setDefaultInt(&c.Logic.DownloadTimeoutSec, 30)
	setDefaultInt(&c.Logic.PollIntervalMS, 1000)
	setDefaultInt(&c.Logic.RequestTimeoutSec, 30)
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

func setDefaultInt(field *int, value int) {
	if *field <= 0 {
		*field = value
	}
}

func (c *RobotConfig) Validate() error {
	if strings.TrimSpace(c.Settings.Agency) == "" {
		return errors.New("settings.agency is required")
	}
	if strings.TrimSpace(c.Settings.Filename) == "" {
		return errors.New("settings.filename is required")
	}
	if c.Settings.Filename != filepath.Base(c.Settings.Filename) {
		return fmt.Errorf("settings.filename %q must be a file name, not a path", c.Settings.Filename)
	}
	switch c.Site.Backend {
	case BackendBrowser, BackendStatic:
	default:
		return fmt.Errorf("site.backend must be %q or %q, got %q", BackendBrowser, BackendStatic, c.Site.Backend)
	}
	return nil
}

// WorkbookPath is where the spreadsheet is written.
func (c *RobotConfig) WorkbookPath() string {
	return filepath.Join(c.Output.Dir, c.Settings.Filename)
}

func (c *RobotConfig) CSVReportPath() string {
	return filepath.Join(c.Output.Dir, c.Output.CSVReport)
}

func (l LogicConfig) PageTimeout() time.Duration {
	return time.Duration(l.PageTimeoutSec) * time.Second
}

func (l LogicConfig) ButtonTimeout() time.Duration {
	return time.Duration(l.ButtonTimeoutSec) * time.Second
}

func (l LogicConfig) DownloadTimeout() time.Duration {
	return time.Duration(l.DownloadTimeoutSec) * time.Second
}

func (l LogicConfig) PollInterval() time.Duration {
	return time.Duration(l.PollIntervalMS) * time.Millisecond
}

func (l LogicConfig) RequestTimeout() time.Duration {
	return time.Duration(l.RequestTimeoutSec) * time.Second
}
