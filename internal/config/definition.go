package config

// Definition is the raw configuration as read from the YAML file and
// environment, before paths are resolved and durations parsed.
type Definition struct {
	Debug     bool     `mapstructure:"debug"`
	LogFormat string   `mapstructure:"logFormat"`
	SiteURL   string   `mapstructure:"siteURL"`
	TZ        string   `mapstructure:"tz"`
	EnvFiles  []string `mapstructure:"envFiles"`

	Paths    pathsDef    `mapstructure:"paths"`
	Content  contentDef  `mapstructure:"content"`
	Archive  archiveDef  `mapstructure:"archive"`
	Schedule scheduleDef `mapstructure:"schedule"`
}

type pathsDef struct {
	CacheDir   string `mapstructure:"cacheDir"`
	ContentDir string `mapstructure:"contentDir"`
	LogDir     string `mapstructure:"logDir"`
}

type contentDef struct {
	Patterns   []string `mapstructure:"patterns"`
	ShowDrafts bool     `mapstructure:"showDrafts"`
	PrettyURLs bool     `mapstructure:"prettyURLs"`
}

type archiveDef struct {
	Endpoint    string `mapstructure:"endpoint"`
	Throttle    string `mapstructure:"throttle"`
	Timeout     string `mapstructure:"timeout"`
	UserAgent   string `mapstructure:"userAgent"`
	MetricsFile string `mapstructure:"metricsFile"`
}

type scheduleDef struct {
	Cron string `mapstructure:"cron"`
}
