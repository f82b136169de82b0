package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v2"
)

var ErrParameterNotFound = errors.New("parameter not found")
var ErrChainNotFound = errors.New("chain not found")

// GlobalKeys lists the global parameters understood by tilediff.
var GlobalKeys = []string{
	"cache-dir",
	"chunk-extension",
	"concurrency",
	"excludes",
	"fingerprint",
	"tile-size",
	"trace",
}

// ChainKeys lists the parameters of a named chain.
var ChainKeys = []string{
	"base",
	"dir",
	"source",
}

type Configuration struct {
	Global map[string]string            `yaml:"global"`
	Chains map[string]map[string]string `yaml:"chains"`
}

type ConfigAPI struct {
	configFilePath string
	config         Configuration
}

func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tilediff", "config.yaml"), nil
}

func NewConfigAPI(filePath string) *ConfigAPI {
	return &ConfigAPI{
		configFilePath: filePath,
		config: Configuration{
			Global: make(map[string]string),
			Chains: make(map[string]map[string]string),
		},
	}
}

func (c *ConfigAPI) Path() string {
	return c.configFilePath
}

// a missing configuration file is an empty configuration
func (c *ConfigAPI) loadConfig() error {
	data, err := os.ReadFile(c.configFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, &c.config); err != nil {
		return fmt.Errorf("%s: %w", c.configFilePath, err)
	}
	if c.config.Global == nil {
		c.config.Global = make(map[string]string)
	}
	if c.config.Chains == nil {
		c.config.Chains = make(map[string]map[string]string)
	}
	return nil
}

func (c *ConfigAPI) saveConfig() error {
	data, err := yaml.Marshal(c.config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.configFilePath), 0700); err != nil {
		return err
	}
	return os.WriteFile(c.configFilePath, data, 0600)
}

func (c *ConfigAPI) ListGlobalParameters(w io.Writer) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	keys := make([]string, 0, len(c.config.Global))
	for key := range c.config.Global {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s: %s\n", key, c.config.Global[key])
	}
	return nil
}

func (c *ConfigAPI) GetGlobalParameter(key string) (string, error) {
	if err := c.loadConfig(); err != nil {
		return "", err
	}
	value, exists := c.config.Global[key]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrParameterNotFound, key)
	}
	return value, nil
}

func (c *ConfigAPI) SetGlobalParameter(key string, value string) error {
	if err := validate(GlobalKeys, key, value); err != nil {
		return err
	}
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.config.Global[key] = value
	return c.saveConfig()
}

func (c *ConfigAPI) GetChainParameter(chain string, key string) (string, error) {
	if err := c.loadConfig(); err != nil {
		return "", err
	}
	params, exists := c.config.Chains[chain]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrChainNotFound, chain)
	}
	value, exists := params[key]
	if !exists {
		return "", fmt.Errorf("%w: %s.%s", ErrParameterNotFound, chain, key)
	}
	return value, nil
}

func (c *ConfigAPI) SetChainParameter(chain string, key string, value string) error {
	if err := validate(ChainKeys, key, value); err != nil {
		return err
	}
	if err := c.loadConfig(); err != nil {
		return err
	}
	if _, exists := c.config.Chains[chain]; !exists {
		c.config.Chains[chain] = make(map[string]string)
	}
	c.config.Chains[chain][key] = value
	return c.saveConfig()
}

// Global returns a copy of the global parameters.
func (c *ConfigAPI) Global() (map[string]string, error) {
	if err := c.loadConfig(); err != nil {
		return nil, err
	}
	ret := make(map[string]string, len(c.config.Global))
	for key, value := range c.config.Global {
		ret[key] = value
	}
	return ret, nil
}

func validate(known []string, key string, value string) error {
	found := false
	for _, k := range known {
		if k == key {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown parameter %q", key)
	}
	switch key {
	case "concurrency", "tile-size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: expected a positive integer, got %q", key, value)
		}
	}
	return nil
}
