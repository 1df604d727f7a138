// Package config defines the svcreg-cli configuration file
// (~/.svcreg/cli.yaml by default).
package config
