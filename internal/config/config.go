// Package config loads and validates the curator's YAML job configuration.
//
// Each job is parsed once into an immutable JobSpec at load time; missing
// mandatory keys surface as a typed MissingKeyError so the runner can skip
// that job with a warning instead of failing mid-download on a bad lookup.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted for catalog credentials before falling
// back to the config file's username/password keys.
const (
	EnvUser = "CURATOR_USER"
	EnvPass = "CURATOR_PASS"
)

// DefaultMountDir is the device-side mount prefix assumed when a mirroring
// job does not configure one.
const DefaultMountDir = "/data"

// Config is the top-level job configuration.
type Config struct {
	Username string    `yaml:"username"`
	Password string    `yaml:"password"`
	Jobs     []JobSpec `yaml:"jobs"`
}

// JobSpec is one configured unit of curation work. It is immutable after
// Load; Validate must pass before a runner accepts it.
type JobSpec struct {
	Name       string `yaml:"job"`
	UploadName string `yaml:"upload_name"`
	VSN        string `yaml:"vsn"`

	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"` // empty means yesterday UTC

	DateRegex  string `yaml:"date_regex"`
	DateFormat string `yaml:"date_format"`

	Extensions  StringList `yaml:"extension"` // empty accepts all files
	GroupByDate *bool      `yaml:"group_by_date"`
	Subfolder   string     `yaml:"subfolder"`

	KeepOriginalPath bool   `yaml:"keep_original_path"`
	MountDir         string `yaml:"mount_dir"`

	WaggleFilenameTimestamp *bool  `yaml:"waggle_filename_timestamp"`
	RenameFormat            string `yaml:"rename_format"` // Go time layout, empty disables renaming
}

// StringList accepts either a single YAML string or a sequence of strings.
// Older job files wrote `extension: nc`; newer ones list several.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		if single != "" {
			*s = StringList{single}
		}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = StringList(many)
		return nil
	default:
		return fmt.Errorf("extension must be a string or list of strings")
	}
}

// MissingKeyError reports a job missing one of its mandatory keys.
type MissingKeyError struct {
	Job string // job name, or "<unnamed>" when the name itself is missing
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("job %q: missing required key %q", e.Job, e.Key)
}

// Load reads and parses a config file. Credentials are resolved afterwards
// with ResolveCredentials; per-job validation happens in Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ResolveCredentials returns the catalog username and password, preferring
// the environment (including a .env file in the working directory) over the
// config file's plaintext keys. Returns an error when neither source
// provides both values; missing credentials abort the whole run.
func (c *Config) ResolveCredentials() (username, password string, err error) {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	username = os.Getenv(EnvUser)
	password = os.Getenv(EnvPass)
	if username == "" {
		username = c.Username
	}
	if password == "" {
		password = c.Password
	}

	if username == "" || password == "" {
		return "", "", fmt.Errorf("catalog credentials not provided (set %s/%s or username/password in the config)", EnvUser, EnvPass)
	}
	return username, password, nil
}

// Validate checks a JobSpec's mandatory keys and cross-field consistency.
func (j *JobSpec) Validate() error {
	name := j.Name
	if name == "" {
		name = "<unnamed>"
	}

	for _, k := range []struct{ key, val string }{
		{"job", j.Name},
		{"upload_name", j.UploadName},
		{"vsn", j.VSN},
		{"start_date", j.StartDate},
	} {
		if k.val == "" {
			return &MissingKeyError{Job: name, Key: k.key}
		}
	}

	if _, err := j.Start(); err != nil {
		return fmt.Errorf("job %q: invalid start_date: %w", j.Name, err)
	}
	if _, err := j.End(); err != nil {
		return fmt.Errorf("job %q: invalid end_date: %w", j.Name, err)
	}

	// Date grouping without the waggle prefix needs a regex/format pair.
	if j.GroupedByDate() && !j.UsesWaggleTimestamp() {
		if j.DateRegex == "" {
			return &MissingKeyError{Job: name, Key: "date_regex"}
		}
		if j.DateFormat == "" {
			return &MissingKeyError{Job: name, Key: "date_format"}
		}
		if _, err := regexp.Compile(j.DateRegex); err != nil {
			return fmt.Errorf("job %q: invalid date_regex: %w", j.Name, err)
		}
	}

	return nil
}

// Start parses the job's inclusive start date.
func (j *JobSpec) Start() (time.Time, error) {
	return parseISODate(j.StartDate)
}

// End parses the job's inclusive end date, defaulting to yesterday UTC when
// unset.
func (j *JobSpec) End() (time.Time, error) {
	if j.EndDate == "" {
		y := time.Now().UTC().AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return parseISODate(j.EndDate)
}

// GroupedByDate reports the date-grouping policy, defaulting to true.
func (j *JobSpec) GroupedByDate() bool {
	return j.GroupByDate == nil || *j.GroupByDate
}

// UsesWaggleTimestamp reports whether filenames carry the sensor network's
// nanosecond-epoch prefix, defaulting to true.
func (j *JobSpec) UsesWaggleTimestamp() bool {
	return j.WaggleFilenameTimestamp == nil || *j.WaggleFilenameTimestamp
}

// Mount returns the mirroring mount prefix, defaulting to DefaultMountDir.
func (j *JobSpec) Mount() string {
	if j.MountDir == "" {
		return DefaultMountDir
	}
	return j.MountDir
}

// AcceptsFile reports whether a filename passes the job's extension filter.
// An empty filter accepts every file.
func (j *JobSpec) AcceptsFile(filename string) bool {
	if len(j.Extensions) == 0 {
		return true
	}
	for _, ext := range j.Extensions {
		if ext == "" {
			continue
		}
		suffix := ext
		if suffix[0] != '.' {
			suffix = "." + suffix
		}
		if len(filename) > len(suffix) && filename[len(filename)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

func parseISODate(s string) (time.Time, error) {
	// Job files use plain ISO dates; tolerate a full timestamp as well.
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want YYYY-MM-DD)", s)
}
