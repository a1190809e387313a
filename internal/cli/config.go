package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL   string
	Token       string
	TokenFile   string
	BridgeToken string
	Output      string
	Verbose     bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   getEnvOrDefault("LINKGUARD_SERVER", "http://localhost:8080"),
		Token:       os.Getenv("LINKGUARD_ADMIN_TOKEN"),
		TokenFile:   getEnvOrDefault("LINKGUARD_TOKEN_FILE", defaultTokenFile()),
		BridgeToken: os.Getenv("LINKGUARD_BRIDGE_TOKEN"),
		Output:      "text",
	}
}

// LoadToken loads the admin token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No token file is fine
		}
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".linkguard/admin-token"
	}
	return filepath.Join(home, ".linkguard", "admin-token")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
