package hub

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ListenConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type ArchiveConfig struct {
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size"`
}

type SessionsConfig struct {
	// LiveBuffer is the per-subscriber buffer of the live event stream.
	// Subscribers falling behind by more than this lose notifications.
	LiveBuffer  int           `yaml:"live_buffer"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Sessions SessionsConfig `yaml:"sessions"`
}

func ParseConfig(path string) (conf *Config, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	conf = &Config{}
	err = yaml.NewDecoder(file).Decode(conf)
	return
}

func (c *Config) FillDefault() {
	if c.Listen.HTTPAddr == "" {
		c.Listen.HTTPAddr = ":8239"
	}
	if c.Listen.MetricsAddr == "" {
		c.Listen.MetricsAddr = ":8240"
	}
	if c.Archive.Path == "" {
		c.Archive.Path = "callscope.db"
	}
	if c.Archive.CacheSize == 0 {
		c.Archive.CacheSize = 64
	}
	if c.Sessions.LiveBuffer == 0 {
		c.Sessions.LiveBuffer = 1024
	}
	if c.Sessions.IdleTimeout == 0 {
		c.Sessions.IdleTimeout = 15 * time.Minute
	}
}
