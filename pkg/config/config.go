package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Corpus     CorpusConfig
	Features   FeaturesConfig
	Search     SearchConfig
	Artifacts  ArtifactsConfig
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Logging    LoggingConfig
	RateLimit  RateLimitConfig
	Validation ValidationConfig
}

type CorpusConfig struct {
	TruePath     string
	FakePath     string
	RawPath      string
	TrainPath    string
	TestPath     string
	TextField    string
	TestFraction float64
	Seed         int64
	StripHTML    bool
}

type FeaturesConfig struct {
	MaxDF         float64
	MinDF         int
	StopWords     string
	StopWordsFile string
	Tokenizer     string
	Lowercase     bool
}

type SearchConfig struct {
	Iterations  int
	Folds       int
	Seed        int64
	Workers     int
	MinAccuracy float64
	MaxIter     int
	Tol         float64
}

type ArtifactsConfig struct {
	ExtractorPath string
	ModelPath     string
	ManifestPath  string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type ValidationConfig struct {
	MaxTextLength int
	MaxBatchSize  int
}

// Load reads config.yaml from the usual locations, applies FAKENEWS_*
// environment overrides and defaults. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/fakenews")
	}

	v.SetEnvPrefix("FAKENEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Default returns the configuration with every default applied and no file
// or environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("corpus.truePath", "data/True.csv")
	v.SetDefault("corpus.fakePath", "data/Fake.csv")
	v.SetDefault("corpus.rawPath", "artifacts/merged_data.csv")
	v.SetDefault("corpus.trainPath", "artifacts/train.csv")
	v.SetDefault("corpus.testPath", "artifacts/test.csv")
	v.SetDefault("corpus.textField", "title")
	v.SetDefault("corpus.testFraction", 0.2)
	v.SetDefault("corpus.seed", 42)
	v.SetDefault("corpus.stripHTML", false)

	v.SetDefault("features.maxDF", 0.7)
	v.SetDefault("features.minDF", 1)
	v.SetDefault("features.stopWords", "english")
	v.SetDefault("features.stopWordsFile", "")
	v.SetDefault("features.tokenizer", "regex")
	v.SetDefault("features.lowercase", true)

	v.SetDefault("search.iterations", 2)
	v.SetDefault("search.folds", 2)
	v.SetDefault("search.seed", 42)
	v.SetDefault("search.workers", 0)
	v.SetDefault("search.minAccuracy", 0.7)
	v.SetDefault("search.maxIter", 1000)
	v.SetDefault("search.tol", 1e-4)

	v.SetDefault("artifacts.extractorPath", "artifacts/preprocessor.bin")
	v.SetDefault("artifacts.modelPath", "artifacts/model.bin")
	v.SetDefault("artifacts.manifestPath", "artifacts/manifest.yaml")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)

	v.SetDefault("sqlite.path", "./data/training.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSec", 3600)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("ratelimit.requestsPerMinute", 60)

	v.SetDefault("validation.maxTextLength", 20000)
	v.SetDefault("validation.maxBatchSize", 100)
}

// Validate rejects out-of-range training constants.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Corpus.TextField == "" {
		add("corpus.textField must be set")
	}
	if c.Corpus.TestFraction <= 0 || c.Corpus.TestFraction >= 1 {
		add("corpus.testFraction must be in (0, 1), got %v", c.Corpus.TestFraction)
	}
	if c.Features.MaxDF <= 0 || c.Features.MaxDF > 1 {
		add("features.maxDF must be in (0, 1], got %v", c.Features.MaxDF)
	}
	if c.Features.MinDF < 1 {
		add("features.minDF must be at least 1, got %d", c.Features.MinDF)
	}
	switch c.Features.Tokenizer {
	case "regex", "prose":
	default:
		add("features.tokenizer must be regex or prose, got %q", c.Features.Tokenizer)
	}
	switch c.Features.StopWords {
	case "english", "none", "":
	default:
		add("features.stopWords must be english or none, got %q", c.Features.StopWords)
	}
	if c.Search.Iterations < 1 {
		add("search.iterations must be at least 1, got %d", c.Search.Iterations)
	}
	if c.Search.Folds < 2 {
		add("search.folds must be at least 2, got %d", c.Search.Folds)
	}
	if c.Search.Workers < 0 {
		add("search.workers must not be negative, got %d", c.Search.Workers)
	}
	if c.Search.MinAccuracy < 0 || c.Search.MinAccuracy > 1 {
		add("search.minAccuracy must be in [0, 1], got %v", c.Search.MinAccuracy)
	}
	if c.Artifacts.ExtractorPath == "" || c.Artifacts.ModelPath == "" {
		add("artifacts.extractorPath and artifacts.modelPath must be set")
	}
	if c.Artifacts.ExtractorPath != "" && c.Artifacts.ExtractorPath == c.Artifacts.ModelPath {
		add("artifacts.extractorPath and artifacts.modelPath must differ")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
