package factories

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bytedance/sonic"
)

// SettingsConfig is the top-level config loaded from settings.json.
// It bundles the transport provider config with the game session config.
type SettingsConfig struct {
	// Transport selects and configures the transport provider.
	Transport TransportFactoryConfig `json:"transport"`
	// Session configures the providers and audio settings of every game.
	Session SessionConfig `json:"session"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with provider defaults.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Transport: DefaultTransportFactoryConfig(),
		Session:   DefaultSessionConfig(),
	}
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig.
// It delegates provider parsing to TransportFactoryConfigFromJSON and
// SessionConfigFromJSON so that the correct providers are detected from the
// JSON keys.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	var raw struct {
		Transport json.RawMessage `json:"transport,omitempty"`
		Session   json.RawMessage `json:"session,omitempty"`
	}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}

	cfg := DefaultSettingsConfig()
	if len(raw.Transport) > 0 {
		transport, err := TransportFactoryConfigFromJSON(raw.Transport)
		if err != nil {
			return SettingsConfig{}, fmt.Errorf("settings: %w", err)
		}
		cfg.Transport = transport
	}
	if len(raw.Session) > 0 {
		session, err := SessionConfigFromJSON(raw.Session)
		if err != nil {
			return SettingsConfig{}, fmt.Errorf("settings: %w", err)
		}
		cfg.Session = session
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// SettingsSource tells where settings were loaded from.
type SettingsSource string

const (
	SettingsFromEnv      SettingsSource = "SETTINGS_JSON_B64"
	SettingsFromFile     SettingsSource = "file"
	SettingsFromDefaults SettingsSource = "defaults"
)

// LoadSettings resolves settings the way the binary does: SETTINGS_JSON_B64
// first, then the file at SETTINGS_PATH (default ./settings.json), then
// defaults when no file exists. A present but invalid source is an error.
func LoadSettings(getenv func(string) string) (SettingsConfig, SettingsSource, error) {
	if b64 := getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return DefaultSettingsConfig(), SettingsFromEnv, fmt.Errorf("settings: decode SETTINGS_JSON_B64: %w", err)
		}
		cfg, err := SettingsConfigFromJSON(data)
		return cfg, SettingsFromEnv, err
	}

	path := getenv("SETTINGS_PATH")
	if path == "" {
		path = "./settings.json"
	}
	cfg, err := SettingsConfigFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettingsConfig(), SettingsFromDefaults, nil
	}
	return cfg, SettingsFromFile, err
}

// APIKeysFromEnv reads provider credentials. GEMINI_API_KEY wins over API_KEY.
func APIKeysFromEnv(getenv func(string) string) APIKeys {
	gemini := getenv("GEMINI_API_KEY")
	if gemini == "" {
		gemini = getenv("API_KEY")
	}
	return APIKeys{
		Gemini:     gemini,
		OpenAI:     getenv("OPENAI_API_KEY"),
		Together:   getenv("TOGETHER_API_KEY"),
		Groq:       getenv("GROQ_API_KEY"),
		DeepSeek:   getenv("DEEPSEEK_API_KEY"),
		OpenRouter: getenv("OPENROUTER_API_KEY"),
	}
}
