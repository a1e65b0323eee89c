// Package xredis builds configured redis clients shared by the cache and
// watcher layers.
package xredis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewClient connects and pings once, so an unreachable redis fails startup
// instead of the first cache read.
func NewClient(cfg Config) (*redis.Client, error) {
	opts, err := newRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

func newRedisOptions(cfg Config) (*redis.Options, error) {
	opts := &redis.Options{}

	switch {
	case cfg.URL != "":
		if err := applyURL(opts, cfg.URL); err != nil {
			return nil, err
		}
	case strings.TrimSpace(cfg.Addr) != "":
		opts.Addr = strings.TrimSpace(cfg.Addr)
	default:
		return nil, errors.New("redis addr or url is required")
	}

	// Explicit fields win over URL credentials.
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.DB != nil {
		opts.DB = *cfg.DB
	}

	if cfg.TLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if opts.TLSConfig != nil {
		opts.TLSConfig.InsecureSkipVerify = cfg.TLSInsecureSkipVerify // #nosec G402 -- explicit operator choice
	} else if cfg.TLSInsecureSkipVerify {
		return nil, errors.New("tls_insecure_skip_verify requires TLS to be enabled (tls=true or rediss://)")
	}

	return opts, nil
}

func applyURL(opts *redis.Options, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
	default:
		return fmt.Errorf("unsupported redis scheme: %s (expected redis:// or rediss://)", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("redis url missing host")
	}

	opts.Addr = u.Host

	if u.User != nil {
		opts.Username = u.User.Username()
		if pwd, ok := u.User.Password(); ok {
			opts.Password = pwd
		}
	}

	if dbStr := strings.TrimPrefix(u.Path, "/"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return fmt.Errorf("invalid redis db in url: %w", err)
		}

		opts.DB = db
	}

	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return nil
}
