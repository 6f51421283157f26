package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/scenekit/internal/db"
)

// Server holds the HTTP listener settings.
type Server struct {
	Addr string
}

// Scenes holds defaults applied when creating scenes.
type Scenes struct {
	GridSize float64
	Width    float64
	Height   float64
}

// Config is the full service configuration.
type Config struct {
	Database db.Config
	Server   Server
	Scenes   Scenes
}

// Default returns the built-in configuration used when no config file
// or environment overrides are present.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server:   Server{Addr: ":8080"},
		Scenes:   Scenes{GridSize: 100, Width: 4000, Height: 4000},
	}
}

// Load reads config.yaml from configPath, then applies environment
// overrides (SCENEKIT_DATABASE_HOST and the like). A missing config
// file is not an error; defaults and env vars still apply.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("SCENEKIT")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("scenes.grid_size")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("scenes.grid_size") {
		cfg.Scenes.GridSize = v.GetFloat64("scenes.grid_size")
	}
	if v.IsSet("scenes.width") {
		cfg.Scenes.Width = v.GetFloat64("scenes.width")
	}
	if v.IsSet("scenes.height") {
		cfg.Scenes.Height = v.GetFloat64("scenes.height")
	}

	return cfg, nil
}
