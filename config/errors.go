// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName         = errors.New("invalid application name")
	ErrInvalidEnvironment     = errors.New("invalid environment")
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrInvalidMaxActors       = errors.New("invalid max actors")
	ErrInvalidMailboxSize     = errors.New("invalid mailbox size")
	ErrInvalidTimeout         = errors.New("invalid supervisor timeout")
	ErrInvalidRefreshInterval = errors.New("invalid discovery refresh interval")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound = errors.New("configuration file not found")
	ErrUnsupportedFormat  = errors.New("unsupported configuration format")
)
