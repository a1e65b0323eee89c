package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/andreazorzetto/yh/highlight"
	"github.com/hokaccha/go-prettyjson"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gopkg.in/yaml.v3"

	sdk "go.opentelemetry.io/otel/sdk/metric"

	"github.com/polittech/stratagem/conf"
	"github.com/polittech/stratagem/internal/app"
	"github.com/polittech/stratagem/internal/bot"
	"github.com/polittech/stratagem/internal/build"
	"github.com/polittech/stratagem/internal/llm/catalog"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/metrics"
	"github.com/polittech/stratagem/internal/server"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			handleConfigCommand()
			return
		case "version", "--version", "-v":
			showVersion()
			return
		case "help", "--help", "-h":
			showHelp()
			return
		case "build-info":
			showBuildInfo()
			return
		}
	}

	startBot()
}

func showBuildInfo() {
	fmt.Println(build.GetBuildInfo())
}

type logger struct{}

func (l *logger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func startBot() {
	app.Run(
		fx.WithLogger(func() fxevent.Logger {
			return &logger{}
		}),
		fx.Provide(conf.Load),
		fx.Provide(metrics.NewProvider),
		fx.Invoke(func(lc fx.Lifecycle, cfg conf.Config, provider *sdk.MeterProvider) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if provider != nil {
						return metrics.SetupMetrics(provider, cfg.Name)
					}

					return nil
				},
				OnStop: func(ctx context.Context) error {
					if provider != nil {
						return provider.Shutdown(ctx)
					}

					return nil
				},
			})
		}),
		fx.Invoke(func(lc fx.Lifecycle, srv *server.Server) {
			if !srv.Config.Enabled {
				return
			}

			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						err := srv.Run()
						if err != nil {
							log.Error(context.Background(), "ops server run error:", log.Cause(err))
							os.Exit(1)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					return srv.Shutdown(ctx)
				},
			})
		}),
		fx.Invoke(func(lc fx.Lifecycle, b *bot.Bot) {
			botCtx, stopBot := context.WithCancel(context.Background())

			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						err := b.Run(botCtx)
						if err != nil {
							log.Error(context.Background(), "bot run error:", log.Cause(err))
							os.Exit(1)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					stopBot()
					return nil
				},
			})
		}),
	)
}

func handleConfigCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: stratagem config <preview|validate|get>")
		os.Exit(1)
	}

	switch os.Args[2] {
	case "preview":
		configPreview()
	case "validate":
		configValidate()
	case "get":
		configGet()
	default:
		fmt.Println("Usage: stratagem config <preview|validate|get>")
		os.Exit(1)
	}
}

func configPreview() {
	format := "yml"

	for i := 3; i < len(os.Args); i++ {
		if os.Args[i] == "--format" || os.Args[i] == "-f" {
			if i+1 < len(os.Args) {
				format = os.Args[i+1]
			}
		}
	}

	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	redacted := config.Redacted()

	var output string

	switch format {
	case "json":
		b, err := prettyjson.Marshal(redacted)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output = string(b)
	case "yml", "yaml":
		b, err := yaml.Marshal(redacted)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output, err = highlight.Highlight(bytes.NewBuffer(b))
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unsupported format: %s\n", format)
		os.Exit(1)
	}

	fmt.Println(output)
}

func configValidate() {
	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	errors := validateConfig(config)

	if len(errors) == 0 {
		fmt.Println("Configuration is valid!")
		return
	}

	fmt.Println("Configuration validation failed:")

	for _, err := range errors {
		fmt.Printf("  - %s\n", err)
	}

	os.Exit(1)
}

func validateConfig(config conf.Config) []string {
	var errors []string

	if config.Bot.Token == "" {
		errors = append(errors, "bot.token must be set")
	}

	if config.Server.Enabled && (config.Server.Port <= 0 || config.Server.Port > 65535) {
		errors = append(errors, "server.port must be between 1 and 65535")
	}

	switch config.Store.Dialect {
	case "", "sqlite", "mysql", "postgres":
	default:
		errors = append(errors, fmt.Sprintf("store.dialect %q is not supported", config.Store.Dialect))
	}

	if config.LLM.Catalog.Model != "" {
		if _, err := catalog.Handle(config.LLM.Catalog.Model); err != nil {
			errors = append(errors, fmt.Sprintf("llm.catalog.model: %v", err))
		}
	}

	return errors
}

func configGet() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: stratagem config get <key>")
		fmt.Println("")
		fmt.Println("Available keys:")
		fmt.Println("  server.enabled   Ops server on/off")
		fmt.Println("  server.host      Ops server host")
		fmt.Println("  server.port      Ops server port")
		fmt.Println("  store.dialect    Database dialect")
		fmt.Println("  store.dsn        Database DSN")
		fmt.Println("  llm.model        Generation model")
		fmt.Println("  log.level        Log level")
		os.Exit(1)
	}

	key := os.Args[3]

	config, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var value interface{}

	switch key {
	case "server.enabled":
		value = config.Server.Enabled
	case "server.host":
		value = config.Server.Host
	case "server.port":
		value = config.Server.Port
	case "store.dialect":
		value = config.Store.Dialect
	case "store.dsn":
		value = config.Store.DSN
	case "llm.model":
		value = config.LLM.Catalog.Model
		if value == "" {
			value = catalog.DefaultModel
		}
	case "log.level":
		value = config.Log.Level
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}

	fmt.Println(value)
}

func showHelp() {
	fmt.Println("Stratagem Telegram assistant")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  stratagem                   Start the bot (default)")
	fmt.Println("  stratagem config preview    Preview configuration")
	fmt.Println("  stratagem config validate   Validate configuration")
	fmt.Println("  stratagem config get <key>  Get a specific config value")
	fmt.Println("  stratagem version           Show version")
	fmt.Println("  stratagem build-info        Show build information")
	fmt.Println("  stratagem help              Show this help message")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -f, --format FORMAT        Output format for config preview (yml, json)")
}

func showVersion() {
	fmt.Println(build.Version)
}
