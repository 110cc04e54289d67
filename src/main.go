package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"vidbox/src/handler/web"
	"vidbox/src/player"
	"vidbox/src/player/mpd"
)

const confFile = "config.yaml"

var (
	build       = "%BUILD%"
	version     = "%VERSION%"
	versionDate = "%VERSION_DATE%"
)

type config struct {
	Address string `yaml:"bind"`

	Playback playbackConfig `yaml:"playback"`

	MPD []struct {
		Name     string  `yaml:"name"`
		Network  string  `yaml:"network"`
		Address  string  `yaml:"address"`
		Password *string `yaml:"password"`
	} `yaml:"mpd"`
}

type playbackConfig struct {
	AutoPlay          bool     `yaml:"autoplay"`
	DisableAutoRetry  bool     `yaml:"disable_auto_retry"`
	NonRetryable      []string `yaml:"non_retryable"`
	MaxAutoRetries    int      `yaml:"max_auto_retries"`
	MaxNetworkRetries int      `yaml:"max_network_retries"`
	RetryBackoffBase  string   `yaml:"retry_backoff_base"`
	RetryBackoffCap   string   `yaml:"retry_backoff_cap"`
	StartTimeout      string   `yaml:"start_timeout"`
	SeekTolerance     string   `yaml:"seek_tolerance"`
}

func (conf *config) Validate() (errs []error) {
	if conf.Address == "" {
		errs = append(errs, fmt.Errorf("config: `bind` is required"))
	}
	if len(conf.MPD) == 0 {
		errs = append(errs, fmt.Errorf("config: no media servers configured"))
	}
	for _, field := range []string{
		conf.Playback.RetryBackoffBase,
		conf.Playback.RetryBackoffCap,
		conf.Playback.StartTimeout,
		conf.Playback.SeekTolerance,
	} {
		if field == "" {
			continue
		}
		if _, err := time.ParseDuration(field); err != nil {
			errs = append(errs, fmt.Errorf("config: %v", err))
		}
	}
	return
}

func (pc playbackConfig) playerConfig() player.Config {
	cfg := player.Config{
		AutoPlay:          pc.AutoPlay,
		DisableAutoRetry:  pc.DisableAutoRetry,
		MaxAutoRetries:    pc.MaxAutoRetries,
		MaxNetworkRetries: pc.MaxNetworkRetries,
	}
	for _, cat := range pc.NonRetryable {
		cfg.NonRetryable = append(cfg.NonRetryable, player.ErrorCategory(cat))
	}
	// Empty values keep the built-in defaults. Validate has already checked
	// the syntax.
	cfg.RetryBackoffBase, _ = time.ParseDuration(pc.RetryBackoffBase)
	cfg.RetryBackoffCap, _ = time.ParseDuration(pc.RetryBackoffCap)
	cfg.StartTimeout, _ = time.ParseDuration(pc.StartTimeout)
	cfg.SeekTolerance, _ = time.ParseDuration(pc.SeekTolerance)
	return cfg
}

func LoadConfig(filename string) (*config, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	var conf config
	if err := d.Decode(&conf); err != nil {
		return nil, err
	}

	return &conf, nil
}

func main() {
	defaultLogLevel := "warn"
	if build == "debug" {
		defaultLogLevel = "debug"
	}

	configFile := flag.String("conf", confFile, "Path to the configuration file")
	printVersion := flag.Bool("version", false, "Print version information and exit")
	logLevel := flag.String("log", defaultLogLevel, "Sets the log level. [debug, info, warn, error]")
	flag.Parse()

	if ll, err := log.ParseLevel(*logLevel); err != nil {
		log.Fatalf("Could not parse log level: %v", err)
	} else {
		log.SetLevel(ll)
	}
	log.SetReportCaller(true)

	if *printVersion {
		fmt.Printf("Version: %v (%v)\n", version, versionDate)
		fmt.Printf("Build: %v\n", build)
		return
	}

	log.Infof("Version: %v (%v)\n", version, build)
	config, err := LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if errs := config.Validate(); len(errs) > 0 {
		log.Fatalf("Could not load config: %v", errs)
	}

	players, err := connectToPlayers(config)
	if err != nil {
		log.Fatal(err)
	}
	if names, err := players.PlayerNames(); err != nil {
		log.Fatal(err)
	} else if len(names) == 0 {
		log.Fatal("No players configured or available")
	} else {
		for _, name := range names {
			log.Infof("Found player %q", name)
		}
	}

	service := web.New(build, version, players)

	if build == "debug" {
		service.Get("/debug/pprof/*", pprof.Index)
	}
	log.Infof("Now accepting HTTP connections on %v", config.Address)
	server := &http.Server{
		Addr:           config.Address,
		Handler:        service,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Fatalf("Error running webserver: %v", server.ListenAndServe())
}

func connectToPlayers(config *config) (player.List, error) {
	playerCfg := config.Playback.playerConfig()
	players := player.SimpleList{}
	for _, mpdConf := range config.MPD {
		port, err := mpd.Connect(mpdConf.Network, mpdConf.Address, mpdConf.Password)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to MPD: %v", err)
		}
		if _, ok := players[mpdConf.Name]; ok {
			return nil, fmt.Errorf("duplicate player name: %q", mpdConf.Name)
		}
		if err := players.Set(mpdConf.Name, player.New(mpdConf.Name, port, playerCfg)); err != nil {
			return nil, err
		}
	}
	return players, nil
}
