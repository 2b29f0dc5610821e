package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Rules       RulesConfig       `toml:"rules"`
	Rotation    RotationConfig    `toml:"rotation"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Lastfm  LastfmConfig  `toml:"lastfm"`
}

// SpotifyConfig contains Spotify API credentials and persisted OAuth tokens.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	TokenExpiry  string `toml:"token_expiry"`
}

// Update stores the fields of an [oauth2.Token] on the config for persistence.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		s.TokenExpiry = token.Expiry.UTC().Format(time.RFC3339)
	}
	return nil
}

// Token reconstructs an [oauth2.Token] from the persisted fields. Returns nil when no token is stored.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	token := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
	}
	if s.TokenExpiry != "" {
		if expiry, err := time.Parse(time.RFC3339, s.TokenExpiry); err == nil {
			token.Expiry = expiry
		}
	}
	return token
}

// Map converts the credentials to the map shape expected by service constructors.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// LastfmConfig contains Last.fm API credentials.
type LastfmConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Username  string `toml:"username"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the OAuth callback.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RulesConfig contains thresholds for the decision layer.
type RulesConfig struct {
	MinPlayCount int `toml:"min_play_count"`
}

// RotationConfig contains heavy-rotation playlist settings.
type RotationConfig struct {
	PlaylistName string `toml:"playlist_name"`
	Size         int    `toml:"size"`
	WindowDays   int    `toml:"window_days"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the config to the specified path as TOML.
func SaveConfig(path string, config *Config) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvOverrides loads a .env file when present and applies credential
// overrides from the environment. Values already set in the environment win
// over the config file; empty variables never clear configured values.
func (c *Config) LoadEnvOverrides() {
	_ = godotenv.Load()

	if value := os.Getenv("SPOTIFY_CLIENT_ID"); value != "" {
		c.Credentials.Spotify.ClientID = value
	}
	if value := os.Getenv("SPOTIFY_CLIENT_SECRET"); value != "" {
		c.Credentials.Spotify.ClientSecret = value
	}
	if value := os.Getenv("SPOTIFY_REDIRECT_URI"); value != "" {
		c.Credentials.Spotify.RedirectURI = value
	}
	if value := os.Getenv("LASTFM_API_KEY"); value != "" {
		c.Credentials.Lastfm.APIKey = value
	}
	if value := os.Getenv("LASTFM_API_SECRET"); value != "" {
		c.Credentials.Lastfm.APISecret = value
	}
	if value := os.Getenv("LASTFM_USERNAME"); value != "" {
		c.Credentials.Lastfm.Username = value
	}
}

// DatabasePath returns the configured database path, falling back to the
// XDG data directory when the config omits one.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	path, err := xdg.DataFile("spins/spins.db")
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return path, nil
}
