package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env         string        `yaml:"env" env:"ENV" env-default:"local"`
	StorageURL  string        `yaml:"storage_url" env:"STORAGE_URL" env-required:"true"`
	MediaDir    string        `yaml:"media_dir" env:"MEDIA_DIR" env-default:"./media"`
	TemplateDir string        `yaml:"template_dir" env:"TEMPLATE_DIR"`
	Secret      string        `yaml:"secret" env:"SECRET" env-required:"true"`
	TokenTTL    time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"1h"`
	HTTPServer  `yaml:"http_server"`
	DiagServer  `yaml:"diag_server"`
	Session     `yaml:"session"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"5s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

// DiagServer serves /metrics. An empty address disables it.
type DiagServer struct {
	Address string `yaml:"address" env:"DIAG_ADDRESS"`
}

type Session struct {
	Lifetime    time.Duration `yaml:"lifetime" env-default:"336h"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"12h"`
	CookieName  string        `yaml:"cookie_name" env-default:"sessionid"`
	Secure      bool          `yaml:"secure" env:"SESSION_SECURE" env-default:"false"`
}

// MustLoad reads the config file named by the -config flag or CONFIG_PATH.
// It panics when the file can't be found or parsed.
func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	cfg, err := Load(path)
	if err != nil {
		log.Panicf("error loading config: %v", err)
	}

	return cfg
}

// Load reads the config file at path. Values from a .env file in the working
// directory are exported into the environment first, so they can override it.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: error opening config file: %w", op, err)
	}

	// .env is optional
	_ = godotenv.Load()

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: error reading config file: %w", op, err)
	}

	return &cfg, nil
}

func fetchConfigPath() string {
	var path string
	flag.StringVar(&path, "config", "", "sets path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	return path
}
