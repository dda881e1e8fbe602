// Package commands implements the gridkernel subcommands
package commands

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/notargets/GridKernel/config"
	"github.com/notargets/GridKernel/logger"
	"github.com/notargets/GridKernel/network"
)

// run is what every subcommand needs before touching the network
type run struct {
	id  string
	cfg *config.Config
	cs  *network.Case
}

// prepare loads the configuration with flag overrides, starts the logger
// and reads the case
func prepare(cmd *cobra.Command) (*run, error) {
	v := config.New()
	flags := cmd.Flags()
	if err := v.BindPFlag("case", flags.Lookup("case")); err != nil {
		return nil, err
	}
	if flags.Changed("ranks") {
		if err := v.BindPFlag("ranks", flags.Lookup("ranks")); err != nil {
			return nil, err
		}
	}
	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	cfg, err := config.LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
		return nil, errors.Wrap(err, "initialize logger")
	}
	if cfg.Case == "" {
		return nil, errors.New("no case file given; use --case or set case in the configuration")
	}
	cs, err := network.LoadCase(cfg.Case)
	if err != nil {
		return nil, err
	}
	r := &run{id: uuid.NewString(), cfg: cfg, cs: cs}
	logger.Logger.Infow("case loaded",
		logger.FieldRunID, r.id,
		"case", cs.Name,
		"buses", len(cs.Buses),
		"branches", len(cs.Branches),
		"ranks", cfg.Ranks)
	return r, nil
}
