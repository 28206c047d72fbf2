package app

import (
	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/utils"
)

type Config struct {
	ServiceName    string
	Environment    string
	Version        string
	Addr           string
	AllowedOrigins string
	RedisAddr      string
	RedisPassword  string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		ServiceName:    utils.GetEnv("SERVICE_NAME", "plantrack-backend", log),
		Environment:    utils.GetEnv("ENVIRONMENT", "development", log),
		Version:        utils.GetEnv("SERVICE_VERSION", "dev", log),
		Addr:           utils.GetEnv("HTTP_ADDR", ":8080", log),
		AllowedOrigins: utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log),
		RedisAddr:      utils.GetEnv("REDIS_ADDR", "", log),
		RedisPassword:  utils.GetEnv("REDIS_PASSWORD", "", log),
	}
}
