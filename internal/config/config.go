// Package config loads gateway configuration from a YAML file, a .env
// file, and environment variable overrides, in that order of increasing
// precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credentials holds everything needed to authenticate to UAA and to the
// AI Core control plane. Immutable after Load returns.
type Credentials struct {
	UAATokenURL     string `yaml:"uaa_token_url"`
	UAAClientID     string `yaml:"uaa_client_id"`
	UAAClientSecret string `yaml:"uaa_client_secret"`
	AICoreAPIURL    string `yaml:"aicore_api_url"`
	ResourceGroup   string `yaml:"resource_group"`

	// APIKey is the legacy single-key form; normalized into APIKeys.
	APIKey string `yaml:"api_key"`
}

// ModelEntry configures one logical model name in Model. Aliases may
// contain trailing-`*` glob patterns that also resolve to this entry
// (see the registry's alias resolution step).
type ModelEntry struct {
	Name            string   `yaml:"name"`
	DeploymentID    string   `yaml:"deployment_id"`
	AICoreModelName string   `yaml:"aicore_model_name"`
	Aliases         []string `yaml:"aliases"`
}

// FallbackModels maps each family to the logical_name to use when a
// requested model has no direct binding.
type FallbackModels struct {
	OpenAI string `yaml:"openai"`
	Claude string `yaml:"claude"`
	Gemini string `yaml:"gemini"`
}

// file mirrors the on-disk YAML shape exactly; Config is the resolved,
// environment-overridden form consumers actually use.
type file struct {
	LogLevel          string          `yaml:"log_level"`
	Port              int             `yaml:"port"`
	RefreshIntervalS  int             `yaml:"refresh_interval_secs"`
	ResourceGroup     string          `yaml:"resource_group"`
	Credentials       Credentials     `yaml:"credentials"`
	APIKeys           []string        `yaml:"api_keys"`
	Models            []ModelEntry    `yaml:"models"`
	FallbackModels    FallbackModels  `yaml:"fallback_models"`
	Log               loggerFile      `yaml:"log"`
	Telemetry         telemetryFile   `yaml:"telemetry"`
}

type loggerFile struct {
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type telemetryFile struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// Config is the resolved, ready-to-use gateway configuration.
type Config struct {
	Credentials          Credentials
	APIKeys              []string
	Port                 int
	LogLevel             string
	LogFormat            string
	LogOutput            string
	RefreshIntervalSecs  int
	Models               []ModelEntry
	FallbackModels       FallbackModels
	TelemetryEnabled     bool
	TelemetryDBPath      string
}

const (
	DefaultPort                = 8900
	DefaultLogLevel             = "info"
	DefaultResourceGroup       = "default"
	DefaultRefreshIntervalSecs = 600
	DefaultTelemetryDBPath     = "gateway-telemetry.db"
)

// Load reads the YAML file at path (if non-empty), a .env file in the
// current directory (best-effort, ignored if absent), and then applies
// environment variable overrides, returning a fully resolved Config.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var f file
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		expanded := ExpandEnvWithDefaults(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg, err := resolve(f)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolve(f file) (*Config, error) {
	cfg := &Config{
		Credentials:         f.Credentials,
		Models:              f.Models,
		FallbackModels:      f.FallbackModels,
		Port:                f.Port,
		LogLevel:            f.LogLevel,
		LogFormat:           f.Log.Format,
		LogOutput:           f.Log.Output,
		RefreshIntervalSecs: f.RefreshIntervalS,
		TelemetryEnabled:    f.Telemetry.Enabled,
		TelemetryDBPath:     f.Telemetry.DBPath,
	}

	if v := os.Getenv("UAA_TOKEN_URL"); v != "" {
		cfg.Credentials.UAATokenURL = v
	}
	if v := os.Getenv("UAA_CLIENT_ID"); v != "" {
		cfg.Credentials.UAAClientID = v
	}
	if v := os.Getenv("UAA_CLIENT_SECRET"); v != "" {
		cfg.Credentials.UAAClientSecret = v
	}
	if v := os.Getenv("GENAI_API_URL"); v != "" {
		cfg.Credentials.AICoreAPIURL = v
	}
	if v := os.Getenv("RESOURCE_GROUP"); v != "" {
		cfg.Credentials.ResourceGroup = v
	}
	if v := os.Getenv("PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if cfg.Credentials.UAATokenURL == "" {
		return nil, fmt.Errorf("config: uaa_token_url is required (set credentials.uaa_token_url or UAA_TOKEN_URL)")
	}
	cfg.Credentials.UAATokenURL = normalizeOAuthTokenURL(cfg.Credentials.UAATokenURL)
	if cfg.Credentials.UAAClientID == "" {
		return nil, fmt.Errorf("config: uaa_client_id is required (set credentials.uaa_client_id or UAA_CLIENT_ID)")
	}
	if cfg.Credentials.UAAClientSecret == "" {
		return nil, fmt.Errorf("config: uaa_client_secret is required (set credentials.uaa_client_secret or UAA_CLIENT_SECRET)")
	}
	if cfg.Credentials.AICoreAPIURL == "" {
		return nil, fmt.Errorf("config: aicore_api_url is required (set credentials.aicore_api_url or GENAI_API_URL)")
	}
	cfg.Credentials.AICoreAPIURL = strings.TrimSuffix(cfg.Credentials.AICoreAPIURL, "/")
	if cfg.Credentials.ResourceGroup == "" {
		cfg.Credentials.ResourceGroup = f.ResourceGroup
	}
	if cfg.Credentials.ResourceGroup == "" {
		cfg.Credentials.ResourceGroup = DefaultResourceGroup
	}

	cfg.APIKeys = resolveAPIKeys(f.APIKeys, cfg.Credentials.APIKey)
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("config: at least one API key is required (set api_keys, credentials.api_key, API_KEY, or API_KEYS)")
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.RefreshIntervalSecs == 0 {
		cfg.RefreshIntervalSecs = DefaultRefreshIntervalSecs
	}
	if cfg.TelemetryDBPath == "" {
		cfg.TelemetryDBPath = DefaultTelemetryDBPath
	}

	return cfg, nil
}

// resolveAPIKeys merges the legacy single api_key, the api_keys list, and
// the API_KEY/API_KEYS environment overrides into one deduplicated list.
func resolveAPIKeys(fromFile []string, legacy string) []string {
	keys := append([]string{}, fromFile...)
	if legacy != "" {
		keys = append(keys, legacy)
	}
	if v := os.Getenv("API_KEYS"); v != "" {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	if v := os.Getenv("API_KEY"); v != "" {
		keys = append(keys, v)
	}

	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func normalizeOAuthTokenURL(url string) string {
	if strings.Contains(url, "/oauth/token") {
		return url
	}
	if strings.HasSuffix(url, "/") {
		return url + "oauth/token"
	}
	return url + "/oauth/token"
}

// ExpandEnvWithDefaults expands ${VAR} and ${VAR:-default} references in
// raw config text before it is parsed as YAML.
func ExpandEnvWithDefaults(raw string) string {
	var out strings.Builder
	i := 0
	for i < len(raw) {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			end := strings.IndexByte(raw[i+2:], '}')
			if end >= 0 {
				out.WriteString(resolveEnvVar(raw[i : i+2+end+1]))
				i += 2 + end + 1
				continue
			}
		}
		out.WriteByte(raw[i])
		i++
	}
	return out.String()
}

// resolveEnvVar expands a single ${VAR:-default} or ${VAR} token.
func resolveEnvVar(token string) string {
	if !strings.HasPrefix(token, "${") || !strings.HasSuffix(token, "}") {
		return token
	}
	content := strings.TrimSuffix(strings.TrimPrefix(token, "${"), "}")

	var name, def string
	if idx := strings.Index(content, ":-"); idx != -1 {
		name, def = content[:idx], content[idx+2:]
	} else {
		name = content
	}
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
