package main

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/marcuoli/go-nbtscan/pkg/nbtscan"
)

// config holds every setting the scan needs. Values come from defaults, then the optional
// YAML file, then flags given on the command line.
type config struct {
	Workers     int
	Timeout     time.Duration
	Verbose     bool
	Debug       bool
	Vendor      bool
	OUIDatabase string
	ARP         bool
	Names       bool
	Dump        bool
}

func defaultConfig() config {
	return config{Workers: nbtscan.DefaultWorkers, Timeout: nbtscan.DefaultTimeout}
}

// Keys accepted in the config file.
const (
	keyWorkers = "workers"
	keyTimeout = "timeout"
	keyVerbose = "verbose"
	keyDebug   = "debug"
	keyVendor  = "vendor"
	keyOUIDB   = "oui_db"
	keyARP     = "arp"
	keyNames   = "names"
	keyDump    = "dump"
)

// loadConfigFile overlays the YAML file at path onto cfg.
func loadConfigFile(cfg *config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return loadConfigBytes(cfg, data)
}

func loadConfigBytes(cfg *config, data []byte) error {
	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	if k.Exists(keyWorkers) {
		cfg.Workers = k.Int(keyWorkers)
	}
	if k.Exists(keyTimeout) {
		cfg.Timeout = k.Duration(keyTimeout)
	}
	for key, dst := range map[string]*bool{
		keyVerbose: &cfg.Verbose,
		keyDebug:   &cfg.Debug,
		keyVendor:  &cfg.Vendor,
		keyARP:     &cfg.ARP,
		keyNames:   &cfg.Names,
		keyDump:    &cfg.Dump,
	} {
		if k.Exists(key) {
			*dst = k.Bool(key)
		}
	}
	if k.Exists(keyOUIDB) {
		cfg.OUIDatabase = k.String(keyOUIDB)
	}
	return nil
}

// applyFlags copies every flag set on the command line over cfg.
func applyFlags(cfg *config, cmd *cli.Command) {
	if cmd.IsSet(flagWorkers) {
		cfg.Workers = cmd.Int(flagWorkers)
	}
	if cmd.IsSet(flagTimeout) {
		cfg.Timeout = cmd.Duration(flagTimeout)
	}
	for name, dst := range map[string]*bool{
		flagVerbose: &cfg.Verbose,
		flagDebug:   &cfg.Debug,
		flagVendor:  &cfg.Vendor,
		flagARP:     &cfg.ARP,
		flagNames:   &cfg.Names,
		flagDump:    &cfg.Dump,
	} {
		if cmd.IsSet(name) {
			*dst = cmd.Bool(name)
		}
	}
	if cmd.IsSet(flagOUIDB) {
		cfg.OUIDatabase = cmd.String(flagOUIDB)
	}
}

func (c config) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Vendor && c.OUIDatabase == "" {
		return fmt.Errorf("--%s needs an OUI database (--%s or %s in the config file)", flagVendor, flagOUIDB, keyOUIDB)
	}
	return nil
}
