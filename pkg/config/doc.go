// Package config loads typed configuration structs from environment
// variables (with optional .env file support for local development). Every
// component in the engine defines its own config struct with `env` tags and
// the composition root loads them at startup.
package config
