// Package config loads runtime settings for the transfer core from an
// optional .env file and the process environment, falling back to defaults
// that work on a typical home network.
package config
