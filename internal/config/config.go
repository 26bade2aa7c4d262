// Package config loads flowpanel settings from an optional flowpanel.yaml,
// an optional .env file and FLOWPANEL_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"flowpanel/internal/blob"
	"flowpanel/internal/core"
	"flowpanel/internal/infra/persistence/redis"
	"flowpanel/internal/infra/persistence/sqlite"
	"flowpanel/pkg/domain"
)

// DefaultConfigName is the config file searched for in the working directory.
const DefaultConfigName = "flowpanel"

// DefaultEnvFile is loaded when present.
const DefaultEnvFile = ".env"

// Config is the resolved process configuration.
type Config struct {
	Storage StorageSettings `mapstructure:"storage"`
	Blob    BlobSettings    `mapstructure:"blob"`
	HTTP    HTTPSettings    `mapstructure:"http"`
	Log     LogSettings     `mapstructure:"log"`
	Trace   TraceSettings   `mapstructure:"trace"`
	Plan    PlanSettings    `mapstructure:"plan"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type StorageSettings struct {
	Driver      string        `mapstructure:"driver"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	Redis       RedisSettings `mapstructure:"redis"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type BlobSettings struct {
	Driver string     `mapstructure:"driver"`
	FSRoot string     `mapstructure:"fs_root"`
	S3     S3Settings `mapstructure:"s3"`
}

type S3Settings struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

type HTTPSettings struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogSettings struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// TraceSettings enables the JSON-lines tracer when Path is set.
type TraceSettings struct {
	Path string `mapstructure:"path"`
}

// PlanSettings holds the experiment plan defaults offered by the shells.
type PlanSettings struct {
	Groups     []string `mapstructure:"groups"`
	Replicates int      `mapstructure:"replicates"`
	Seed       uint64   `mapstructure:"seed"`
}

// envBindings maps config keys to the environment variables the backends
// already read, so either spelling configures the same setting.
var envBindings = map[string]string{
	"storage.driver":         core.EnvStorageDriver,
	"storage.sqlite_path":    core.EnvSQLitePath,
	"storage.postgres_dsn":   core.EnvPostgresDSN,
	"storage.redis.addr":     core.EnvRedisAddr,
	"storage.redis.password": core.EnvRedisPassword,
	"storage.redis.db":       core.EnvRedisDB,
	"storage.redis.key":      core.EnvRedisKey,
	"blob.driver":            blob.EnvDriver,
	"blob.fs_root":           blob.EnvFSRoot,
	"blob.s3.bucket":         blob.EnvS3Bucket,
	"blob.s3.region":         blob.EnvS3Region,
	"blob.s3.endpoint":       blob.EnvS3Endpoint,
	"blob.s3.path_style":     blob.EnvS3PathStyle,
	"http.addr":              "FLOWPANEL_HTTP_ADDR",
	"http.cors_origins":      "FLOWPANEL_HTTP_CORS_ORIGINS",
	"log.level":              "FLOWPANEL_LOG_LEVEL",
	"log.encoding":           "FLOWPANEL_LOG_ENCODING",
	"trace.path":             "FLOWPANEL_TRACE_PATH",
	"plan.groups":            "FLOWPANEL_PLAN_GROUPS",
	"plan.replicates":        "FLOWPANEL_PLAN_REPLICATES",
	"plan.seed":              "FLOWPANEL_PLAN_SEED",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", string(core.StorageSQLite))
	v.SetDefault("storage.sqlite_path", sqlite.DefaultPath)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.redis.addr", redis.DefaultAddr)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key", redis.DefaultKey)
	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", blob.DefaultFSRoot)
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", blob.DefaultS3Region)
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("trace.path", "")
	v.SetDefault("plan.groups", core.DefaultGroups())
	v.SetDefault("plan.replicates", core.DefaultReplicates)
	v.SetDefault("plan.seed", core.DefaultPlanSeed)
}

// Options locates the config sources. Empty fields use the defaults: a
// flowpanel.yaml in the working directory and a .env file beside it.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load resolves the configuration. A missing default config or .env file is
// not an error; a missing explicitly named one is.
func Load(opts Options) (Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Plan.Groups = core.ParseGroups(strings.Join(c.Plan.Groups, ","))
}

// Validate rejects unknown drivers and incomplete backend settings.
func (c Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StorageRedis:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage: postgres driver requires %s", core.EnvPostgresDSN)
		}
	default:
		return domain.UnknownVariantError{Kind: "storage driver", Label: c.Storage.Driver}
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob: s3 driver requires %s", blob.EnvS3Bucket)
		}
	default:
		return domain.UnknownVariantError{Kind: "blob driver", Label: c.Blob.Driver}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return domain.UnknownVariantError{Kind: "log level", Label: c.Log.Level}
	}
	if len(c.Plan.Groups) == 0 {
		return domain.EmptyGroupsError{}
	}
	if c.Plan.Replicates < 1 {
		return fmt.Errorf("plan: replicates must be at least 1, got %d", c.Plan.Replicates)
	}
	return nil
}

// StorageConfig maps the storage settings onto core.StorageConfig.
func (c Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:        core.StorageDriver(c.Storage.Driver),
		SQLitePath:    c.Storage.SQLitePath,
		PostgresDSN:   c.Storage.PostgresDSN,
		RedisAddr:     c.Storage.Redis.Addr,
		RedisPassword: c.Storage.Redis.Password,
		RedisDB:       c.Storage.Redis.DB,
		RedisKey:      c.Storage.Redis.Key,
	}
}

// BlobConfig maps the blob settings onto blob.Config. AWS credentials stay
// with the default credential chain.
func (c Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}

// PlanParams returns plan parameters seeded from the configured defaults.
func (c Config) PlanParams(randomize bool) core.PlanParams {
	seed := c.Plan.Seed
	return core.PlanParams{
		Groups:     append([]string(nil), c.Plan.Groups...),
		Replicates: c.Plan.Replicates,
		Randomize:  randomize,
		Seed:       &seed,
	}
}
