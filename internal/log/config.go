package log

const (
	DefaultPattern    = "%time [%level] %msg %field%n"
	DefaultTimeLayout = "2006-01-02 15:04:05.000"
	DefaultLevel      = "info"
)

// Config is the `log:` section of the netcodec configuration.
type Config struct {
	Level        string          `mapstructure:"level" yaml:"level"`
	Pattern      string          `mapstructure:"pattern" yaml:"pattern"`
	Time         string          `mapstructure:"time" yaml:"time"`
	ReportCaller bool            `mapstructure:"report_caller" yaml:"report_caller"`
	File         FileAppenderOpt `mapstructure:"file" yaml:"file"`
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.Level == "" {
		out.Level = DefaultLevel
	}
	if out.Pattern == "" {
		out.Pattern = DefaultPattern
	}
	if out.Time == "" {
		out.Time = DefaultTimeLayout
	}
	return out
}
