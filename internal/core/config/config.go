package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin HTTP
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type LogFile struct {
	Filename   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

// Storage selects the table that backs the identity stores.
type Storage struct {
	Driver           string // azure | memory
	ConnectionString string
	TableName        string
	PartitionKey     string
	CreateTable      bool
	RoleMatch        string // exact | substring
}

type Bootstrap struct {
	AdminEmail    string
	AdminPassword string
}

type Config struct {
	App       App
	Log       Log
	JWT       JWT
	Storage   Storage
	Bootstrap Bootstrap
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "table-identity")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("app.admin.readtimeoutsec", 5)
	v.SetDefault("app.admin.writetimeoutsec", 10)
	v.SetDefault("app.admin.idletimeoutsec", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.filename", "")
	v.SetDefault("log.file.compress", false)
	v.SetDefault("log.file.maxsizemb", 100)
	v.SetDefault("log.file.maxbackups", 7)
	v.SetDefault("log.file.maxagedays", 30)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "table-identity")
	v.SetDefault("jwt.accesstokenttlmin", 60)
	v.SetDefault("storage.driver", "azure")
	v.SetDefault("storage.connectionstring", "")
	v.SetDefault("storage.tablename", "Users")
	v.SetDefault("storage.partitionkey", "Users")
	v.SetDefault("storage.createtable", true)
	v.SetDefault("storage.rolematch", "exact")
	v.SetDefault("bootstrap.adminemail", "")
	v.SetDefault("bootstrap.adminpassword", "")
}

// Load reads YAML from path (or $CONFIG_PATH, or ./configs/config.local.yaml).
// Every key can be overridden with an APP_ variable, e.g.
// APP_STORAGE_CONNECTIONSTRING. A missing file is tolerated when the
// environment carries the settings.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "azure":
		if c.Storage.ConnectionString == "" {
			return fmt.Errorf("config: storage.connectionstring is required for the azure driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Storage.RoleMatch {
	case "exact", "substring":
	default:
		return fmt.Errorf("config: unknown storage.rolematch %q", c.Storage.RoleMatch)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	// api and admin each hold their own memory table, so a bootstrapped
	// admin only exists inside the admin process.
	if c.Storage.Driver == "memory" && c.Bootstrap.AdminEmail != "" && c.App.Env != "local" {
		return fmt.Errorf("config: bootstrap.adminemail with the memory driver is only allowed in app.env=local")
	}
	return nil
}
