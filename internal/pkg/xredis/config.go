package xredis

import (
	"time"
)

type Config struct {
	// Addr is the host:port of the redis server. URL takes precedence when
	// both are set.
	Addr string `conf:"addr" yaml:"addr" json:"addr"`

	// URL is a redis:// or rediss:// connection string.
	URL string `conf:"url" yaml:"url" json:"url"`

	Username string `conf:"username" yaml:"username" json:"username"`
	Password string `conf:"password" yaml:"password" json:"password"`

	// DB selects the logical database. Nil keeps the URL's choice, or 0.
	DB *int `conf:"db" yaml:"db" json:"db"`

	TLS                   bool `conf:"tls" yaml:"tls" json:"tls"`
	TLSInsecureSkipVerify bool `conf:"tls_insecure_skip_verify" yaml:"tls_insecure_skip_verify" json:"tls_insecure_skip_verify"`

	// Expiration is the default TTL for cache entries stored through this
	// connection.
	Expiration time.Duration `conf:"expiration" yaml:"expiration" json:"expiration"`
}
