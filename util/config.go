package util

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const Name = "refterm"
const ConfigFileName = "config.yaml"

const (
	defaultMaxChars       = 500
	maxMaxChars           = 2000
	defaultRequestTimeout = 10
)

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		ApiBaseUrl     string  `yaml:"apiBaseUrl"`
		Token          string  `yaml:"token"`
		UserId         string  `yaml:"userId"`
		Role           string  `yaml:"role"`
		RequestTimeout int     `yaml:"requestTimeout"`
		RateLimit      float64 `yaml:"rateLimit"`
		RateBurst      int     `yaml:"rateBurst"`
		Host           string
		SshPort        int    `yaml:"sshPort"`
		HttpPort       int    `yaml:"httpPort"`
		WithWeb        bool   `yaml:"withWeb"`
		WithJournald   bool   `yaml:"withJournald"`
		LogLevel       string `yaml:"logLevel"`
		MaxChars       int    `yaml:"maxChars"`
	}
}

func ReadConf() (*AppConfig, error) {

	// Local working directory first, then the user config dir
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			if writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0600); writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	c, err := ParseConf(buf)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)
	c.normalize()
	return c, nil
}

// ParseConf decodes a yaml config document without touching the environment.
func ParseConf(buf []byte) (*AppConfig, error) {
	c := &AppConfig{}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}
	return c, nil
}

// DefaultConf returns the embedded defaults after normalization.
func DefaultConf() *AppConfig {
	c, err := ParseConf(embeddedConfig)
	if err != nil {
		panic(err)
	}
	c.normalize()
	return c
}

func (c *AppConfig) applyEnv(getenv func(string) string) {
	if v := getenv("REFTERM_API_URL"); v != "" {
		c.Conf.ApiBaseUrl = v
	}
	if v := getenv("REFTERM_TOKEN"); v != "" {
		c.Conf.Token = v
	}
	if v := getenv("REFTERM_USER_ID"); v != "" {
		c.Conf.UserId = v
	}
	if v := getenv("REFTERM_ROLE"); v != "" {
		c.Conf.Role = v
	}
	if v := getenv("REFTERM_HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := getenv("REFTERM_LOG_LEVEL"); v != "" {
		c.Conf.LogLevel = v
	}

	parseInt := func(key string, dst *int) {
		v := getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Error parsing %s: %v", key, err)
			return
		}
		*dst = n
	}
	parseInt("REFTERM_SSHPORT", &c.Conf.SshPort)
	parseInt("REFTERM_HTTPPORT", &c.Conf.HttpPort)
	parseInt("REFTERM_REQUEST_TIMEOUT", &c.Conf.RequestTimeout)
	parseInt("REFTERM_RATE_BURST", &c.Conf.RateBurst)
	parseInt("REFTERM_MAX_CHARS", &c.Conf.MaxChars)

	if v := getenv("REFTERM_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Printf("Error parsing REFTERM_RATE_LIMIT: %v", err)
		} else {
			c.Conf.RateLimit = f
		}
	}

	if getenv("REFTERM_WITH_WEB") == "true" {
		c.Conf.WithWeb = true
	}
	if getenv("REFTERM_WITH_JOURNALD") == "true" {
		c.Conf.WithJournald = true
	}
}

func (c *AppConfig) normalize() {
	c.Conf.ApiBaseUrl = strings.TrimRight(strings.TrimSpace(c.Conf.ApiBaseUrl), "/")

	if c.Conf.RequestTimeout <= 0 {
		c.Conf.RequestTimeout = defaultRequestTimeout
	}

	if c.Conf.MaxChars == 0 {
		c.Conf.MaxChars = defaultMaxChars
	} else if c.Conf.MaxChars > maxMaxChars {
		log.Printf("maxChars value %d exceeds maximum of %d, capping", c.Conf.MaxChars, maxMaxChars)
		c.Conf.MaxChars = maxMaxChars
	} else if c.Conf.MaxChars < 1 {
		log.Printf("maxChars value %d is less than minimum of 1, setting to default %d", c.Conf.MaxChars, defaultMaxChars)
		c.Conf.MaxChars = defaultMaxChars
	}

	// A zero rate disables client-side throttling
	if c.Conf.RateLimit < 0 {
		c.Conf.RateLimit = 0
	}
	if c.Conf.RateBurst < 1 {
		c.Conf.RateBurst = 1
	}
}

// ForSession copies the config for one SSH session. Credentials come only
// from the variables the client sent, never from the server's own config.
func (c *AppConfig) ForSession(environ []string) *AppConfig {
	out := *c
	env := map[string]string{}
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	out.Conf.Token = env["REFTERM_TOKEN"]
	out.Conf.UserId = env["REFTERM_USER_ID"]
	if v := env["REFTERM_ROLE"]; v != "" {
		out.Conf.Role = v
	}
	return &out
}
