// Package settings reads configuration from settings files and BUNDLE_*
// environment variables.
package settings

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
)

// EnvPrefix is the prefix of environment variables mapped onto keys.
const EnvPrefix = "BUNDLE"

// Recognized keys.
const (
	KeyGemfile           = "gemfile"
	KeyPath              = "path"
	KeyJobs              = "jobs"
	KeyFrozen            = "frozen"
	KeyWithout           = "without"
	KeyDisableSharedGems = "disable_shared_gems"
	KeyCacheTTL          = "cache_ttl"
	KeyRetry             = "retry"
)

// deprecated maps removed keys to their replacement.
var deprecated = map[string]string{
	"disable_system_gems": KeyDisableSharedGems,
	"system":              KeyPath,
	"bin":                 "",
}

// Loader implements ports.SettingsLoader with viper.
type Loader struct {
	home string
}

// Option configures a Loader.
type Option func(*Loader)

// WithHome overrides the directory holding the global settings file.
func WithHome(dir string) Option {
	return func(l *Loader) {
		l.home = dir
	}
}

// New creates a Loader reading "~/.bundle/config" and the process environment.
func New(opts ...Option) *Loader {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	l := &Loader{home: home}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges, in increasing precedence, the global settings file, the
// project settings file under root and BUNDLE_* environment variables.
func (l *Loader) Load(root string) (domain.Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key := range deprecated {
		_ = v.BindEnv(key)
	}
	setDefaults(v, domain.DefaultSettings())

	var files []string
	if l.home != "" {
		files = append(files, filepath.Join(l.home, domain.BundleDirName, domain.ConfigFileName))
	}
	if root != "" {
		files = append(files, filepath.Join(root, domain.BundleDirName, domain.ConfigFileName))
	}
	for _, file := range files {
		if err := mergeFile(v, file); err != nil {
			return domain.Settings{}, err
		}
	}

	if err := checkDeprecated(v); err != nil {
		return domain.Settings{}, err
	}
	return decode(v)
}

func setDefaults(v *viper.Viper, s domain.Settings) {
	v.SetDefault(KeyJobs, s.Jobs)
	v.SetDefault(KeyCacheTTL, s.CacheTTL)
	v.SetDefault(KeyRetry, s.Retry)
	v.SetDefault("engine", s.Engine)
	v.SetDefault("abi", s.ABI)
}

func mergeFile(v *viper.Viper, file string) error {
	f, err := os.Open(file) //nolint:gosec // settings paths are derived from home and project root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.With(domain.ErrSettingsReadFailed.Wrap(err), "path", file)
	}
	defer func() { _ = f.Close() }()

	parsed := viper.New()
	parsed.SetConfigType("yaml")
	if err := parsed.ReadConfig(f); err != nil {
		return zerr.With(domain.ErrSettingsReadFailed.Wrap(err), "path", file)
	}

	// Keys may be written either as "path" or in the "BUNDLE_PATH" form.
	values := make(map[string]any)
	for _, key := range parsed.AllKeys() {
		values[strings.TrimPrefix(key, "bundle_")] = parsed.Get(key)
	}
	if err := v.MergeConfigMap(values); err != nil {
		return zerr.With(domain.ErrSettingsReadFailed.Wrap(err), "path", file)
	}
	return nil
}

func checkDeprecated(v *viper.Viper) error {
	keys := make([]string, 0, len(deprecated))
	for key := range deprecated {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if !v.IsSet(key) {
			continue
		}
		err := zerr.With(domain.ErrDeprecatedOption, "setting", key)
		if replacement := deprecated[key]; replacement != "" {
			err = zerr.With(err, "use", replacement)
		}
		return err
	}
	return nil
}

func decode(v *viper.Viper) (domain.Settings, error) {
	s := domain.Settings{
		Gemfile:           v.GetString(KeyGemfile),
		Path:              v.GetString(KeyPath),
		Engine:            v.GetString("engine"),
		ABI:               v.GetString("abi"),
		Jobs:              v.GetInt(KeyJobs),
		Frozen:            v.GetBool(KeyFrozen),
		Without:           splitList(v.Get(KeyWithout)),
		DisableSharedGems: v.GetBool(KeyDisableSharedGems),
		CacheTTL:          v.GetDuration(KeyCacheTTL),
		Retry:             v.GetInt(KeyRetry),
	}
	if s.Jobs < 1 {
		return domain.Settings{}, zerr.With(zerr.With(domain.ErrInvalidSetting, "setting", KeyJobs), "value", v.GetString(KeyJobs))
	}
	if s.Retry < 0 {
		s.Retry = 0
	}
	return s, nil
}

// splitList accepts a YAML sequence or a string separated by colons, commas
// or spaces.
func splitList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	case []string:
		parts = val
	case string:
		parts = strings.FieldsFunc(val, func(r rune) bool {
			return r == ':' || r == ',' || r == ' '
		})
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
