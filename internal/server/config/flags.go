package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

var flagNames = []string{
	"-a", "-g", "-d", "-s", "-alg", "-t", "-prefix", "-cors", "-cost", "-mode", "-log",
}

// FlagNames lists every flag the config layers consume, the JSON file flags
// included. All of them take a value.
func FlagNames() []string {
	return append(append([]string{}, flagNames...), "-c", "-config")
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string       HTTP bind address (e.g., ":8000")
//	-g string       gRPC bind address (e.g., ":50051")
//	-d string       PostgreSQL DSN
//	-s string       JWT HMAC secret key
//	-alg string     JWT signing algorithm
//	-t int          access token validity, minutes
//	-prefix string  API path prefix
//	-cors string    comma-separated CORS origins
//	-cost int       bcrypt cost
//	-mode string    gin mode
//	-log string     log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, so the config file flag and admin sub-commands do not
// collide with it.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port for health checks")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SigningAlgorithm, "alg", config.SigningAlgorithm, "JWT signing algorithm")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.APIPrefix, "prefix", config.APIPrefix, "API path prefix")
	origins := fs.String("cors", strings.Join(config.CORSAllowedOrigins, ","), "comma-separated CORS origins")
	fs.IntVar(&config.BcryptCost, "cost", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.GinMode, "mode", config.GinMode, "gin mode (debug, release, test)")
	fs.StringVar(&config.LogLevel, "log", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// minute granularity would truncate a finer JSON/env value, so only apply when given
	if set["t"] {
		config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	}
	if set["cors"] {
		config.CORSAllowedOrigins = splitOrigins(*origins)
	}
}
