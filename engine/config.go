// Configuration loading. Pode's config is a JSON document with a small
// set of recognized top-level keys; everything else is reserved for user
// code and must survive untouched. Loading goes through viper so
// environment overrides and defaults compose with the document instead of
// requiring a hand-rolled merge step.
package engine

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the parsed form of the server's configuration document.
// Keys viper saw that aren't among the recognized ones below stay in the
// viper tree, reachable verbatim from handler code via Config.Raw.
type Config struct {
	Server ServerSection `mapstructure:"server"`
	Web    WebSection    `mapstructure:"web"`

	v *viper.Viper // the live tree; Raw reads through this
}

type ServerSection struct {
	Restart    RestartSection   `mapstructure:"restart"`
	Request    RequestSection   `mapstructure:"request"`
	Profiling  ProfilingSection `mapstructure:"profiling"`
	DebugLevel int              `mapstructure:"debugLevel"`
}

// ProfilingSection models server.profiling.*: enabling it wires a Profiler
// onto the ServerContext whose ProfCPU/ProfHeap/ProfThread/ProfGoroutine/
// ProfBlock methods the embedding program's own signal handler (or an
// admin hook) can call on demand.
type ProfilingSection struct {
	Enable        bool   `mapstructure:"enable"`
	CPUFile       string `mapstructure:"cpuFile"`
	HeapFile      string `mapstructure:"heapFile"`
	ThreadFile    string `mapstructure:"threadFile"`
	GoroutineFile string `mapstructure:"goroutineFile"`
	BlockFile     string `mapstructure:"blockFile"`
}

// RestartSection models the server.restart.{period,times,crons}
// and §8's "Restart config" invariant: each present key installs exactly
// one timer/schedule, absent keys install nothing.
type RestartSection struct {
	Period int      `mapstructure:"period"` // minutes; 0 means absent
	Times  []string `mapstructure:"times"`  // "HH:MM" wall-clock triggers
	Crons  []string `mapstructure:"crons"`  // cron expressions
}

type RequestSection struct {
	Timeout  time.Duration `mapstructure:"timeout"`  // parsed only; the engine does not enforce a per-request timeout
	BodySize int64         `mapstructure:"bodySize"` // max body size in bytes, 0 means unlimited
}

type WebSection struct {
	Static StaticSection `mapstructure:"static"`
}

type StaticSection struct {
	Cache CacheSection `mapstructure:"cache"`
}

type CacheSection struct {
	MaxAge int  `mapstructure:"maxAge"`
	Enable bool `mapstructure:"enable"`
}

// LoadConfigFile reads the JSON document at path, applying PODE_-prefixed
// environment overrides on top so deployment-specific values never need
// to be baked into the checked-in document.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("PODE")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, NewError(KindConfiguration, "config.read", err)
	}
	return configFromViper(v)
}

// LoadConfigDefault returns an empty, fully-defaulted Config for embedding
// Pode without a configuration file (tests, programmatic construction).
func LoadConfigDefault() *Config {
	cfg, _ := configFromViper(viper.New())
	return cfg
}

func configFromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("server.profiling.cpuFile", "tmps/cpu.prof")
	v.SetDefault("server.profiling.heapFile", "tmps/hep.prof")
	v.SetDefault("server.profiling.threadFile", "tmps/thr.prof")
	v.SetDefault("server.profiling.goroutineFile", "tmps/grt.prof")
	v.SetDefault("server.profiling.blockFile", "tmps/blk.prof")

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, NewError(KindConfiguration, "config.unmarshal", err)
	}
	return cfg, nil
}

// Raw returns the value stored at a dotted key in the original document,
// e.g. "myapp.featureFlag". This is how handler code reaches the
// top-level keys reserved for user code.
func (c *Config) Raw(key string) (any, bool) {
	if c.v == nil || !c.v.IsSet(key) {
		return nil, false
	}
	return c.v.Get(key), true
}
