package providers

import (
	"fmt"
	"freedomwall/internal/structures"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.collection", "freedomWall")
	v.SetDefault("cache.ttl", "5s")

	v.BindEnv("logger.level", "FW_LOG_LEVEL")
	v.BindEnv("webServer.port", "FW_LISTEN_PORT")
	v.BindEnv("store.backend", "FW_STORE_BACKEND")
	v.BindEnv("store.path", "FW_STORE_PATH")
	v.BindEnv("cache.enabled", "FW_CACHE_ENABLED")
	v.BindEnv("cache.size", "FW_CACHE_SIZE")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "FreedomWall"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
