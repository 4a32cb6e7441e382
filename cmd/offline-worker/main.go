package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	offlineworker "github.com/always-cache/offline-worker"
	"github.com/always-cache/offline-worker/store"
)

var (
	// CLI flags
	portFlag           int
	originFlag         string
	addrFlag           string
	hostFlag           string
	dbFilenameFlag     string
	configFilenameFlag string
	storeVersionFlag   string
	appOriginFlag      string
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
	flag.StringVar(&dbFilenameFlag, "db", "offline.db", "Store DB file name (use 'memory' for in-memory db)")
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&storeVersionFlag, "version", "", "Store version tag (overrides config)")
	flag.StringVar(&appOriginFlag, "app-origin", "", "Public origin of the application, e.g. https://hub.example.com (overrides config)")
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
		With().Str("build", version).Logger()

	var config Config
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
	}

	// set up sqlite memory provider
	dbFilename := dbFilenameFlag
	if dbFilename == "memory" {
		dbFilename = ""
	}
	storage, err := store.NewSQLiteStorage(dbFilename)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open store DB")
	}
	defer storage.Close()

	workerConfig := offlineworker.Config{
		Storage:       storage,
		Version:       config.Version,
		Precache:      config.Precache,
		Rules:         config.Rules,
		Notifications: config.Notifications,
		Logger:        &log.Logger,
	}
	if storeVersionFlag != "" {
		workerConfig.Version = storeVersionFlag
	}

	// get the downstream server address
	origin := config.Origin
	if originFlag != "" {
		origin = originFlag
	}
	host := config.Host
	if hostFlag != "" {
		host = hostFlag
	}
	if origin != "" {
		originUrl, err := url.Parse(origin)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not parse url")
		}
		workerConfig.OriginURL = *originUrl
		workerConfig.OriginHost = host
	} else if addrFlag != "" {
		originUrl, err := url.Parse("https://" + addrFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not parse url")
		}
		workerConfig.OriginURL = *originUrl
		workerConfig.OriginHost = host
	} else {
		log.Fatal().Msg("Please specify origin")
	}

	appOrigin := config.AppOrigin
	if appOriginFlag != "" {
		appOrigin = appOriginFlag
	}
	if appOrigin != "" {
		appOriginUrl, err := url.Parse(appOrigin)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not parse app origin")
		}
		workerConfig.AppOrigin = *appOriginUrl
	}

	worker := offlineworker.New(workerConfig)
	if err := worker.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Could not start worker")
	}

	log.Info().Msgf("Proxying port %v to %s (with hostname '%s')", portFlag, workerConfig.OriginURL.String(), workerConfig.OriginHost)
	err = http.ListenAndServe(fmt.Sprintf(":%d", portFlag), newRouter(worker))

	if err != nil {
		panic(err)
	}
}
