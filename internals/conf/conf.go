package conf

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	z "github.com/Oudwins/zog"
)

type Config struct {
	Version string       `json:"-"`
	Engine  EngineConfig `json:"engine"`
	Device  DeviceConfig `json:"device"`
	Tasks   TasksConfig  `json:"tasks"`
	Server  ServerConfig `json:"server"`
}

// EngineConfig selects the automation backend. When PreferReal is set the
// daemon tries to load the engine shared library and falls back to the stub
// on any failure; ForceStub skips the real backend entirely.
type EngineConfig struct {
	PreferReal   bool   `json:"prefer_real"`
	ForceStub    bool   `json:"force_stub"`
	LibPath      string `json:"lib_path"`
	ResourcePath string `json:"resource_path"`
}

type DeviceConfig struct {
	Transport string `json:"transport"`
	Address   string `json:"address"`
	Extra     string `json:"extra"`
}

type TasksConfig struct {
	RetentionMinutes   int `json:"retention_minutes"`
	SyncTimeoutSeconds int `json:"sync_timeout_seconds"`
}

type ServerConfig struct {
	DataDir string `json:"data_dir"`
}

var engineSchema = z.Struct(z.Shape{
	"PreferReal":   z.Bool().Default(true),
	"ForceStub":    z.Bool().Default(false),
	"LibPath":      z.String().Optional().Transform(expandPathTransform),
	"ResourcePath": z.String().Optional().Transform(expandPathTransform),
})

var deviceSchema = z.Struct(z.Shape{
	"Transport": z.String().Default("adb"),
	"Address":   z.String().Default("127.0.0.1:5555"),
	"Extra":     z.String().Default("{}"),
})

var tasksSchema = z.Struct(z.Shape{
	"RetentionMinutes":   z.Int().Default(60),
	"SyncTimeoutSeconds": z.Int().Default(120),
})

var serverSchema = z.Struct(z.Shape{
	"DataDir": z.String().Default("~/.pilotd").Transform(expandPathTransform),
})

var ConfigSchema = z.Struct(z.Shape{
	"engine": engineSchema,
	"device": deviceSchema,
	"tasks":  tasksSchema,
	"server": serverSchema,
})

var config *Config

func GetConfig() *Config {
	if config == nil {
		defaults := &Config{}
		if err := ConfigSchema.Parse(map[string]any{}, defaults); err != nil {
			log.Fatal("[Pilotd] Failed to parse config", err)
		}
		defaults.Version = "0.1.0"

		configPath := filepath.Join(filepath.Clean(defaults.Server.DataDir), "pilot.json")
		data, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				config = defaults
				return config
			}
			log.Fatal("[Pilotd] Failed to read config file", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			config = defaults
			return config
		}

		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Fatal("[Pilotd] Failed to parse config file", err)
		}
		parsed := &Config{}
		if err := ConfigSchema.Parse(payload, parsed); err != nil {
			log.Fatal("[Pilotd] Failed to parse config", err)
		}
		parsed.Version = defaults.Version
		config = parsed
	}

	return config
}

func expandPathTransform(ptr *string, c z.Ctx) error {
	expanded, err := expandPath(*ptr)
	*ptr = expanded
	return err
}

func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}
