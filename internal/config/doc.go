// Package config loads project configuration from vorma.json or
// vorma.yml, applying defaults for anything unset.
package config
