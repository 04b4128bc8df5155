package am

import (
	"os"
	"sort"
	"strings"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/rtsne/am.toml
	SourceUser        ConfigSource = "user"        // ~/.rtsne/am.toml
	SourceProject     ConfigSource = "project"     // project am.toml
	SourceEnvironment ConfigSource = "environment" // RTSNE_* env vars
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // File path or environment variable name
}

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"`
}

// GetSettings returns every effective setting, sorted by key, with the
// source that set it.
func GetSettings() []SettingInfo {
	v := GetViper()

	mu.Lock()
	sources := make(map[string]SourceInfo, len(ConfigSources))
	for k, s := range ConfigSources {
		sources[k] = s
	}
	mu.Unlock()

	keys := v.AllKeys()
	sort.Strings(keys)

	settings := make([]SettingInfo, 0, len(keys))
	for _, key := range keys {
		settings = append(settings, describe(key, v.Get(key), sources))
	}
	return settings
}

func describe(key string, value interface{}, sources map[string]SourceInfo) SettingInfo {
	info := SourceInfo{Source: SourceDefault, Path: "built-in default"}
	if si, ok := sources[key]; ok {
		info = si
	}

	envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if os.Getenv(envKey) != "" {
		info = SourceInfo{Source: SourceEnvironment, Path: envKey}
	}

	return SettingInfo{
		Key:        key,
		Value:      value,
		Source:     info.Source,
		SourcePath: info.Path,
	}
}
