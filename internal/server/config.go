package server

import "time"

type Config struct {
	// Enabled gates the whole ops surface. The bot runs without it.
	Enabled bool `conf:"enabled" yaml:"enabled" json:"enabled"`

	Name string `conf:"name" yaml:"name" json:"name"`
	Host string `conf:"host" yaml:"host" json:"host"`
	Port int    `conf:"port" yaml:"port" json:"port"`

	ReadTimeout time.Duration `conf:"read_timeout" yaml:"read_timeout" json:"read_timeout"`

	// RequestTimeout is the maximum duration for processing a request.
	RequestTimeout time.Duration `conf:"request_timeout" yaml:"request_timeout" json:"request_timeout"`

	Debug bool `conf:"debug" yaml:"debug" json:"debug"`
}
