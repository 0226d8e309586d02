package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel    string      `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort    string      `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort  string      `yaml:"socket-port" env:"SOCKET_PORT" env-default:"4040"`
	Redis       Redis       `yaml:"redis"`
	Matchmaking Matchmaking `yaml:"matchmaking"`
	Blitz       Blitz       `yaml:"blitz"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Matchmaking struct {
	TimeoutSeconds int `yaml:"timeout-seconds" env:"MATCHMAKING_TIMEOUT_SECONDS" env-default:"30"`
}

type Blitz struct {
	PlySeconds int `yaml:"ply-seconds" env:"BLITZ_PLY_SECONDS" env-default:"10"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Matchmaking) Timeout() time.Duration {
	return time.Duration(that.TimeoutSeconds) * time.Second
}

func (that *Blitz) PlyDuration() time.Duration {
	return time.Duration(that.PlySeconds) * time.Second
}
