package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string        `yaml:"env" env-required:"true"`
	StoragePath string        `yaml:"storage_path" env-required:"true"`
	TokenTTL    time.Duration `yaml:"token_ttl" env-default:"1h"`
	HTTPServer  `yaml:"http_server"`
	Library     `yaml:"library"`
	Session     `yaml:"session"`
	Export      `yaml:"export"`
	Gateway     `yaml:"gateway"`
	Billing     `yaml:"billing"`
}

type HTTPServer struct {
	Address      string        `yaml:"address" env-default:"localhost:8080"`
	Timeout      time.Duration `yaml:"timeout" env-default:"4s"`
	IddleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	TmpDir       string        `yaml:"tmp_dir" env-default:"./tmp"`
}

type Library struct {
	SourceDir string `yaml:"source_dir" env-required:"true"`
}

type Session struct {
	Capacity int `yaml:"capacity" env-default:"10000"`
}

type Export struct {
	WorkDir       string        `yaml:"work_dir" env-required:"true"`
	RenderBin     string        `yaml:"render_bin" env-required:"true"`
	RenderThreads int           `yaml:"render_threads" env-default:"4"`
	RenderTimeout time.Duration `yaml:"render_timeout" env-default:"10m"`
	QueueLen      int           `yaml:"queue_len" env-default:"64"`
	CostPerMinute int64         `yaml:"cost_per_minute" env-default:"10"`
	ReapTTL       time.Duration `yaml:"reap_ttl" env-default:"24h"`
	ReapFreq      time.Duration `yaml:"reap_freq" env-default:"1h"`
}

type Gateway struct {
	GatewayAddress string        `yaml:"address" env-required:"true"`
	GatewayTimeout time.Duration `yaml:"timeout" env-default:"5m"`
}

type Billing struct {
	BillingAddress string        `yaml:"address" env-required:"true"`
	BillingTimeout time.Duration `yaml:"timeout" env-default:"10s"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
// Default value is empty string.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
