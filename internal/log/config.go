package log

// Config controls the process-wide logging behavior.
type Config struct {
	// Name is attached to every entry so aggregated logs can be attributed to a component.
	Name string `conf:"name" yaml:"name" json:"name"`
	// Level is the minimal level to emit: debug, info, warn or error.
	Level string `conf:"level" yaml:"level" json:"level"`
	// Format selects the encoder, either console or json.
	Format string `conf:"format" yaml:"format" json:"format"`
	// Output selects the sink: stdout, stderr or file.
	Output string `conf:"output" yaml:"output" json:"output"`
	File   File   `conf:"file" yaml:"file" json:"file"`
}

// File configures the rotating file sink, used when Output is "file".
type File struct {
	Path       string `conf:"path" yaml:"path" json:"path"`
	MaxSize    int    `conf:"max_size" yaml:"max_size" json:"max_size"`
	MaxBackups int    `conf:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `conf:"max_age" yaml:"max_age" json:"max_age"`
	Compress   bool   `conf:"compress" yaml:"compress" json:"compress"`
}

func (cfg Config) withDefaults() Config {
	if cfg.Name == "" {
		cfg.Name = "stratagem"
	}

	if cfg.Level == "" {
		cfg.Level = "info"
	}

	if cfg.Format == "" {
		cfg.Format = "console"
	}

	if cfg.Output == "" {
		cfg.Output = "stderr"
	}

	if cfg.File.MaxSize <= 0 {
		cfg.File.MaxSize = 100
	}

	if cfg.File.MaxBackups <= 0 {
		cfg.File.MaxBackups = 3
	}

	return cfg
}
