package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigSource represents a source of configuration values
type ConfigSource interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetDuration(key string) (time.Duration, bool)
}

// EnvSource implements ConfigSource for environment variables
type EnvSource struct{}

func (e *EnvSource) GetString(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

func (e *EnvSource) GetInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i, true
	}
	return 0, false
}

func (e *EnvSource) GetDuration(key string) (time.Duration, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, true
	}
	return 0, false
}

// FlagSource implements ConfigSource for command-line flags
type FlagSource struct {
	values map[string]interface{}
}

func NewFlagSource() *FlagSource {
	return &FlagSource{values: make(map[string]interface{})}
}

func (f *FlagSource) Set(key string, value interface{}) {
	f.values[key] = value
}

func (f *FlagSource) GetString(key string) (string, bool) {
	if value, exists := f.values[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

func (f *FlagSource) GetInt(key string) (int, bool) {
	if value, exists := f.values[key]; exists {
		if i, ok := value.(int); ok {
			return i, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetDuration(key string) (time.Duration, bool) {
	if value, exists := f.values[key]; exists {
		if d, ok := value.(time.Duration); ok {
			return d, true
		}
	}
	return 0, false
}

// FileSource implements ConfigSource over a viper-loaded YAML file.
// File keys are the env key names lowercased without the POOL_ prefix,
// e.g. POOL_MAX_FANOUT becomes max_fanout.
type FileSource struct {
	v *viper.Viper
}

// NewFileSource reads the YAML file at path. An empty path yields an
// empty source so the file stays optional.
func NewFileSource(path string) (*FileSource, error) {
	v := viper.New()
	if path == "" {
		return &FileSource{v: v}, nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return &FileSource{v: v}, nil
}

func fileKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, "POOL_"))
}

func (f *FileSource) GetString(key string) (string, bool) {
	k := fileKey(key)
	if !f.v.IsSet(k) {
		return "", false
	}
	return f.v.GetString(k), true
}

func (f *FileSource) GetInt(key string) (int, bool) {
	k := fileKey(key)
	if !f.v.IsSet(k) {
		return 0, false
	}
	return f.v.GetInt(k), true
}

func (f *FileSource) GetDuration(key string) (time.Duration, bool) {
	k := fileKey(key)
	if !f.v.IsSet(k) {
		return 0, false
	}
	return f.v.GetDuration(k), true
}
