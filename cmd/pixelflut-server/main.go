package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pixelflut-go/internal/infra/buildinfo"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "pixelflut-server",
		Usage:   "multiplayer pixel canvas server",
		Version: buildinfo.String(),
		Flags:   serverFlags(),
		Action:  run,
	}
}

// flagKeys maps each override flag to its configuration key.
var flagKeys = map[string]string{
	"width":             "canvas.width",
	"height":            "canvas.height",
	"tcp":               "server.tcp.addr",
	"udp":               "server.udp.addr",
	"ws":                "server.ws.addr",
	"unix":              "server.unix.path",
	"metrics":           "server.metrics.addr",
	"snapshot":          "storage.snapshot_path",
	"snapshot-interval": "storage.snapshot_interval",
	"log-level":         "log.level",
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to YAML configuration file",
			EnvVars: []string{"PIXELFLUT_CONFIG"},
		},
		&cli.IntFlag{Name: "width", Usage: "canvas width in pixels"},
		&cli.IntFlag{Name: "height", Usage: "canvas height in pixels"},
		&cli.StringFlag{Name: "tcp", Usage: "TCP listen address, empty disables"},
		&cli.StringFlag{Name: "udp", Usage: "UDP listen address, empty disables"},
		&cli.StringFlag{Name: "ws", Usage: "WebSocket listen address, empty disables"},
		&cli.StringFlag{Name: "unix", Usage: "Unix socket path, empty disables"},
		&cli.StringFlag{Name: "metrics", Usage: "metrics and health listen address, empty disables"},
		&cli.StringFlag{Name: "snapshot", Usage: "snapshot file path, empty keeps the canvas in memory only"},
		&cli.DurationFlag{Name: "snapshot-interval", Usage: "interval between snapshots, 0 saves only on shutdown", Value: 30 * time.Second},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
	}
}

// flagOverrides returns the explicitly set flags as configuration keys.
func flagOverrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for name, key := range flagKeys {
		if !c.IsSet(name) {
			continue
		}
		out[key] = c.Value(name)
	}
	return out
}

func run(c *cli.Context) error {
	configFile := c.String("config")
	cfg, err := loadConfig(configFile, flagOverrides(c))
	if err != nil {
		return err
	}

	srv, err := newServer(cfg, configFile)
	if err != nil {
		return err
	}
	if err := srv.start(c.Context); err != nil {
		return err
	}
	return srv.wait()
}
