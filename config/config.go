// Package config loads run settings from a YAML file, defaults and
// GRIDKERNEL_ environment variables
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/notargets/GridKernel/contingency"
	"github.com/notargets/GridKernel/network"
	"github.com/notargets/GridKernel/partitions"
)

// EnvPrefix prefixes every environment override, e.g. GRIDKERNEL_SCREEN_GROUP_SIZE
const EnvPrefix = "GRIDKERNEL"

type Config struct {
	Case      string          `mapstructure:"case"`
	Ranks     int             `mapstructure:"ranks"`
	Partition PartitionConfig `mapstructure:"partition"`
	Screen    ScreenConfig    `mapstructure:"screen"`
	Log       LogConfig       `mapstructure:"log"`
}

type PartitionConfig struct {
	Strategy string `mapstructure:"strategy"`
}

type ScreenConfig struct {
	GroupSize       int                 `mapstructure:"group_size"`
	MaxCondition    float64             `mapstructure:"max_condition"`
	RatingThreshold float64             `mapstructure:"rating_threshold"`
	N1              N1Config            `mapstructure:"n1"`
	Contingencies   []ContingencyConfig `mapstructure:"contingencies"`
}

// N1Config selects generated single-element outages. Area and zone zero
// match everything.
type N1Config struct {
	Branches   bool `mapstructure:"branches"`
	Generators bool `mapstructure:"generators"`
	Area       int  `mapstructure:"area"`
	Zone       int  `mapstructure:"zone"`
}

// ContingencyConfig is an explicitly listed, possibly multi-element outage
type ContingencyConfig struct {
	Name       string                        `mapstructure:"name"`
	Lines      []contingency.LineOutage      `mapstructure:"lines"`
	Generators []contingency.GeneratorOutage `mapstructure:"generators"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("case", "")
	v.SetDefault("ranks", 1)
	v.SetDefault("partition.strategy", "graph")

	v.SetDefault("screen.group_size", 1)
	v.SetDefault("screen.max_condition", 1e14)
	v.SetDefault("screen.rating_threshold", 1.0)
	v.SetDefault("screen.n1.branches", true)
	v.SetDefault("screen.n1.generators", false)
	v.SetDefault("screen.n1.area", 0)
	v.SetDefault("screen.n1.zone", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// New returns a viper instance with defaults and environment binding
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads path, if given, over the defaults and applies environment
// overrides
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper decodes and validates the configuration held by v
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Ranks < 1 {
		return errors.Newf("ranks must be positive, have %d", c.Ranks)
	}
	if c.Screen.GroupSize < 1 || c.Screen.GroupSize > c.Ranks {
		return errors.Newf("group size %d outside 1..%d", c.Screen.GroupSize, c.Ranks)
	}
	if c.Ranks%c.Screen.GroupSize != 0 {
		return errors.Newf("%d ranks do not split into groups of %d", c.Ranks, c.Screen.GroupSize)
	}
	if c.Screen.RatingThreshold <= 0 {
		return errors.Newf("rating threshold must be positive, have %g", c.Screen.RatingThreshold)
	}
	if _, err := c.Strategy(); err != nil {
		return err
	}
	for i, cc := range c.Screen.Contingencies {
		if cc.Name == "" {
			return errors.Newf("contingency %d has no name", i)
		}
		if len(cc.Lines) == 0 && len(cc.Generators) == 0 {
			return errors.Newf("contingency %q lists no elements", cc.Name)
		}
	}
	return nil
}

func (c *Config) Strategy() (partitions.PartitionStrategy, error) {
	return partitions.ParseStrategy(c.Partition.Strategy)
}

// Contingencies returns the listed contingencies followed by the generated
// N-1 outages for cs
func (c *Config) Contingencies(cs *network.Case) []*contingency.Contingency {
	var out []*contingency.Contingency
	for _, cc := range c.Screen.Contingencies {
		typ := contingency.TypeBranch
		if len(cc.Lines) == 0 {
			typ = contingency.TypeGenerator
		}
		out = append(out, &contingency.Contingency{
			Name:       cc.Name,
			Type:       typ,
			Lines:      cc.Lines,
			Generators: cc.Generators,
		})
	}
	n1 := c.Screen.N1
	if n1.Branches {
		out = append(out, contingency.BranchContingencies(cs, n1.Area, n1.Zone)...)
	}
	if n1.Generators {
		out = append(out, contingency.GeneratorContingencies(cs, n1.Area, n1.Zone)...)
	}
	return out
}

// DCOptions maps the screening settings onto the DC evaluator
func (c *Config) DCOptions() contingency.DCOptions {
	return contingency.DCOptions{
		MaxCondition:    c.Screen.MaxCondition,
		RatingThreshold: c.Screen.RatingThreshold,
	}
}
