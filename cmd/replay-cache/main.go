package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	replaycache "github.com/replay-cache/replay-cache"
	"github.com/replay-cache/replay-cache/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	portFlag           int
	originFlag         string
	addrFlag           string
	hostFlag           string
	providerFlag       string
	dbFilenameFlag     string
	redisAddrFlag      string
	metricsAddrFlag    string
	configFilenameFlag string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides addr and host)")
	flag.StringVar(&addrFlag, "addr", "", "Origin IP address to proxy to")
	flag.StringVar(&hostFlag, "host", "", "Hostname of origin")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&providerFlag, "provider", "sqlite", "Store provider: memory, sqlite or redis")
	flag.StringVar(&dbFilenameFlag, "db", "cache.db", "Cache DB file name (use 'memory' for in-memory db)")
	flag.StringVar(&redisAddrFlag, "redis", "localhost:6379", "Redis address for the redis provider")
	flag.StringVar(&metricsAddrFlag, "metrics", "", "Address to serve Prometheus metrics on (e.g. ':9091')")
	flag.StringVar(&configFilenameFlag, "config", "", "Config file to use")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	var config Config
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
	}
	// flags override the config file
	if originFlag != "" {
		config.Origin = originFlag
	}
	if hostFlag != "" {
		config.Host = hostFlag
	}
	if config.Store.Provider == "" {
		config.Store.Provider = providerFlag
	}
	if config.Store.DBFile == "" {
		config.Store.DBFile = dbFilenameFlag
	}
	if config.Store.RedisAddr == "" {
		config.Store.RedisAddr = redisAddrFlag
	}

	cacheConfig := replaycache.Config{
		Store:  createStore(config.Store),
		Policy: config.policyConfig(),
		Logger: &log.Logger,
	}

	// get the downstream server address
	if config.Origin != "" {
		originUrl, err := url.Parse(config.Origin)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not parse url")
		}
		cacheConfig.OriginURL = *originUrl
		cacheConfig.OriginHost = config.Host
	} else if addrFlag != "" {
		originUrl, err := url.Parse("https://" + addrFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not parse url")
		}
		cacheConfig.OriginURL = *originUrl
		cacheConfig.OriginHost = config.Host
	} else {
		log.Fatal().Msg("Please specify origin")
	}

	if metricsAddrFlag != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Info().Msgf("Serving metrics on %s", metricsAddrFlag)
			if err := http.ListenAndServe(metricsAddrFlag, mux); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	rcache := replaycache.New(cacheConfig)
	log.Info().Msgf("Proxying port %v to %s (with hostname '%s')", portFlag, cacheConfig.OriginURL.String(), cacheConfig.OriginHost)
	err := http.ListenAndServe(fmt.Sprintf(":%d", portFlag), rcache)

	if err != nil {
		panic(err)
	}
}

func createStore(config ConfigStore) store.Store {
	switch config.Provider {
	case "memory":
		return store.NewMemoryStore()
	case "redis":
		return store.NewRedisStore(redis.NewClient(&redis.Options{
			Addr: config.RedisAddr,
		}))
	default:
		dbFilename := config.DBFile
		if dbFilename == "memory" {
			dbFilename = ""
		}
		s, err := store.NewSQLiteStore(dbFilename)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not open cache db")
		}
		return s
	}
}
