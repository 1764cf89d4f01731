package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

const (
	defaultHubURL       = "ws://localhost:8081/ws"
	defaultKeypairFile  = "validator-keypair.json"
	defaultProbeTimeout = 10 * time.Second
	defaultReconnectMax = time.Minute
)

// config defines the command line options of the validator.
type config struct {
	HubURL       string        `long:"hub" description:"websocket endpoint of the hub"`
	KeypairFile  string        `short:"k" long:"keypair" description:"keypair file (JSON array of 64 bytes)"`
	Generate     bool          `long:"generate" description:"create the keypair file when it does not exist"`
	IP           string        `long:"ip" description:"address reported at signup (default: as seen by the hub)"`
	ProbeTimeout time.Duration `long:"probe-timeout" description:"timeout of one HTTP probe"`
	ReconnectMax time.Duration `long:"reconnect-max" description:"longest wait between reconnect attempts"`
	LogLevel     string        `long:"log-level" description:"debug, info, warn or error"`
	PrettyLog    bool          `long:"pretty" description:"colored console logs instead of JSON"`
	ShowVersion  bool          `short:"V" long:"version" description:"display version information and exit"`
}

// loadConfig initializes and parses the config using command line options.
func loadConfig() (*config, error) {
	// Default config.
	cfg := config{
		HubURL:       defaultHubURL,
		KeypairFile:  defaultKeypairFile,
		ProbeTimeout: defaultProbeTimeout,
		ReconnectMax: defaultReconnectMax,
		LogLevel:     "info",
	}

	// Parse command line options.
	if _, err := flags.Parse(&cfg); err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		return nil, err
	}

	return &cfg, nil
}
