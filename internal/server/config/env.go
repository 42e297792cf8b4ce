package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// envFile is loaded before reading the environment. Variables already set in
// the process environment win over the file.
var envFile = ".env"

// parseEnv overlays Config with environment variables:
//
//	AUTHKEEPER_HTTP_ADDR         HTTP bind address
//	AUTHKEEPER_GRPC_ADDR         gRPC bind address
//	DATABASE_DSN                 PostgreSQL DSN
//	SECRET_KEY                   JWT HMAC secret
//	ALGORITHM                    JWT signing algorithm
//	ACCESS_TOKEN_EXPIRE_MINUTES  access token validity, minutes
//	API_V1_STR                   API path prefix
//	BACKEND_CORS_ORIGINS         comma-separated allowed origins
//	BCRYPT_COST                  bcrypt work factor
//	GIN_MODE                     gin mode
//	LOG_LEVEL                    log level
//
// Unset or unparsable values leave the current setting untouched.
func parseEnv(config *Config) {
	_ = godotenv.Load(envFile)

	setString(&config.EndpointAddrHTTP, "AUTHKEEPER_HTTP_ADDR")
	setString(&config.EndpointAddrGRPC, "AUTHKEEPER_GRPC_ADDR")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.SecretKey, "SECRET_KEY")
	setString(&config.SigningAlgorithm, "ALGORITHM")
	setString(&config.APIPrefix, "API_V1_STR")
	setString(&config.GinMode, "GIN_MODE")
	setString(&config.LogLevel, "LOG_LEVEL")

	if v, ok := lookupInt("ACCESS_TOKEN_EXPIRE_MINUTES"); ok {
		config.AccessTokenValidityDuration = time.Duration(v) * time.Minute
	}
	if v, ok := lookupInt("BCRYPT_COST"); ok {
		config.BcryptCost = v
	}
	if v := os.Getenv("BACKEND_CORS_ORIGINS"); v != "" {
		config.CORSAllowedOrigins = splitOrigins(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
