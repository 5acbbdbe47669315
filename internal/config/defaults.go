package config

const (
	defaultStateDir     = "~/.local/share/tilenorm"
	defaultPatchPattern = "annotation/subtype/slide"
	defaultMethod       = "vahadane"
	defaultSeed         = 1234
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
	defaultRetention    = 30
)

var defaultExtensions = []string{"png"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Normalize: Normalize{
			Methods:      []string{defaultMethod},
			PatchPattern: defaultPatchPattern,
			Extensions:   append([]string(nil), defaultExtensions...),
			Seed:         defaultSeed,
		},
		Ledger: Ledger{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RunLogs:       true,
			RetentionDays: defaultRetention,
		},
	}
}
