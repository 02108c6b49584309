// Package config provides unified configuration loading for the leafwise
// engine and its server binary.
//
// Precedence: defaults, then YAML file, then environment variables.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("LEAFWISE").
//	    Load()
package config
