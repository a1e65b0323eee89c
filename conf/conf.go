package conf

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/polittech/stratagem/internal/bot"
	"github.com/polittech/stratagem/internal/llm/catalog"
	"github.com/polittech/stratagem/internal/llm/pipeline"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/metrics"
	"github.com/polittech/stratagem/internal/pkg/watcher"
	"github.com/polittech/stratagem/internal/pkg/xcache"
	"github.com/polittech/stratagem/internal/proxy"
	"github.com/polittech/stratagem/internal/server"
	"github.com/polittech/stratagem/internal/store"
	"github.com/polittech/stratagem/internal/tgfeed"
	"github.com/polittech/stratagem/internal/web"
	"github.com/polittech/stratagem/internal/workers"
)

const (
	envPrefix = "STRATAGEM"
	tagName   = "conf"
)

// Config is the whole process configuration. Components apply their own
// defaults on construction; the loader only fills what they cannot.
type Config struct {
	Name  string `conf:"name" yaml:"name" json:"name"`
	Debug bool   `conf:"debug" yaml:"debug" json:"debug"`

	Log     log.Config     `conf:"log" yaml:"log" json:"log"`
	Bot     bot.Config     `conf:"bot" yaml:"bot" json:"bot"`
	LLM     LLM            `conf:"llm" yaml:"llm" json:"llm"`
	Proxy   proxy.Config   `conf:"proxy" yaml:"proxy" json:"proxy"`
	Feed    tgfeed.Config  `conf:"feed" yaml:"feed" json:"feed"`
	Web     web.Config     `conf:"web" yaml:"web" json:"web"`
	Store   store.Config   `conf:"store" yaml:"store" json:"store"`
	Cache   xcache.Config  `conf:"cache" yaml:"cache" json:"cache"`
	Watcher watcher.Config `conf:"watcher" yaml:"watcher" json:"watcher"`
	Workers Workers        `conf:"workers" yaml:"workers" json:"workers"`
	Metrics metrics.Config `conf:"metrics" yaml:"metrics" json:"metrics"`
	Server  server.Config  `conf:"server" yaml:"server" json:"server"`
}

type LLM struct {
	Catalog  catalog.Config  `conf:"catalog" yaml:"catalog" json:"catalog"`
	Pipeline pipeline.Config `conf:"pipeline" yaml:"pipeline" json:"pipeline"`
}

type Workers struct {
	Rescan workers.RescanConfig `conf:"rescan" yaml:"rescan" json:"rescan"`
}

// Load reads the YAML config file and applies environment overrides.
//
// The file is taken from STRATAGEM_CONFIG when set, otherwise searched as
// stratagem.yaml in ., $HOME/.stratagem and /etc/stratagem. A missing file
// is fine, the environment and the defaults carry a minimal deployment.
// Environment keys follow the config tree: server.port becomes
// STRATAGEM_SERVER_PORT.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindKeys(v, reflect.TypeOf(Config{}), "")

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stratagem")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.stratagem")
		v.AddConfigPath("/etc/stratagem")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config

	err := v.Unmarshal(&config, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = tagName
	})
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := mergo.Merge(&config, defaultConfig()); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}

	return config, nil
}

// bindKeys registers every leaf key with viper so environment-only values
// are visible to Unmarshal.
func bindKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		name, _, _ := strings.Cut(field.Tag.Get(tagName), ",")
		if name == "" || name == "-" {
			continue
		}

		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		if ft.Kind() == reflect.Struct {
			bindKeys(v, ft, key)
			continue
		}

		_ = v.BindEnv(key)
	}
}

// defaultConfig holds the loader-level defaults. Per-component defaults
// live next to the components and apply on construction.
func defaultConfig() Config {
	return Config{
		Name: "stratagem",
		Server: server.Config{
			Name:           "stratagem",
			Host:           "0.0.0.0",
			Port:           8090,
			ReadTimeout:    15 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
	}
}

// Redacted returns a copy safe for printing, with secrets masked.
func (c Config) Redacted() Config {
	c.Bot.Token = maskSecret(c.Bot.Token)
	c.Cache.Redis.Password = maskSecret(c.Cache.Redis.Password)
	c.Watcher.Redis.Password = maskSecret(c.Watcher.Redis.Password)

	return c
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}

	if len(s) <= 8 {
		return "****"
	}

	return s[:4] + "****" + s[len(s)-4:]
}
