package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds CLI configuration. Environment variables seed the defaults of
// the matching global flags.
type Config struct {
	ServerURL string `env:"BGTRACK_SERVER" envDefault:"http://localhost:8080"`
	Token     string `env:"BGTRACK_TOKEN"`
	TokenFile string `env:"BGTRACK_TOKEN_FILE"`
	Output    string `env:"BGTRACK_OUTPUT" envDefault:"text"`
	Verbose   bool   `env:"BGTRACK_VERBOSE"`
}

// DefaultConfig reads the environment. A malformed BGTRACK_VERBOSE is
// ignored rather than refusing to start.
func DefaultConfig() *Config {
	c := &Config{ServerURL: "http://localhost:8080", Output: "text"}
	if parsed, err := env.ParseAs[Config](); err == nil {
		*c = parsed
	}
	if c.TokenFile == "" {
		c.TokenFile = defaultTokenFile()
	}
	return c
}

// Validate checks the values flags can get wrong
func (c *Config) Validate() error {
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output format %q: must be text or json", c.Output)
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("invalid server %q: must be an http or https URL", c.ServerURL)
	}
	return nil
}

// LoadToken reads the saved token unless one was given explicitly. A missing
// file just means nobody has logged in yet.
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("read token file: %w", err)
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken remembers token for later commands
func (c *Config) SaveToken(token string) error {
	c.Token = token

	if err := os.MkdirAll(filepath.Dir(c.TokenFile), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.TokenFile, []byte(token+"\n"), 0o600)
}

// ClearToken forgets the saved token
func (c *Config) ClearToken() error {
	c.Token = ""
	if err := os.Remove(c.TokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".bgtrack", "token")
	}
	return filepath.Join(home, ".bgtrack", "token")
}
