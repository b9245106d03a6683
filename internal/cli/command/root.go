package command

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pixelflut-go/internal/cli/config"
	"github.com/yndnr/pixelflut-go/internal/cli/connection"
	"github.com/yndnr/pixelflut-go/internal/cli/output"
	"github.com/yndnr/pixelflut-go/internal/core/domain"
	"github.com/yndnr/pixelflut-go/internal/infra/buildinfo"
)

const cliConfigKey = "cliConfig"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "pixelflut-cli",
		Usage:   "Draw on and inspect a pixelflut canvas",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SizeCommand(),
			GetCommand(),
			SetCommand(),
			RectCommand(),
			StateCommand(),
			ServerHelpCommand(),
			ShellCommand(),
			ProfileCommand(),
			SnapshotCommand(),
			HealthCommand(),
			MetricsCommand(),
		},
		Before: func(c *cli.Context) error {
			if err := applyProfile(c); err != nil {
				return err
			}
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Server address: host:port, socket path for unix, or ws://host:port/path",
			EnvVars: []string{"PIXELFLUT_SERVER"},
			Value:   "localhost:1234",
		},
		&cli.StringFlag{
			Name:    "transport",
			Aliases: []string{"t"},
			Usage:   "Transport: tcp, udp, ws, unix",
			EnvVars: []string{"PIXELFLUT_TRANSPORT"},
			Value:   connection.TransportTCP,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: text, json, yaml",
			Value:   string(output.FormatText),
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "Omit table headers in text output",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Dial and response timeout",
			Value: connection.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Connection profile from the CLI config file",
			EnvVars: []string{"PIXELFLUT_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "cli-config",
			Usage:   "CLI config file holding connection profiles",
			EnvVars: []string{"PIXELFLUT_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM file of extra trusted roots for wss:// and https:// addresses",
			EnvVars: []string{"PIXELFLUT_CA_FILE"},
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Aliases: []string{"m"},
			Usage:   "Metrics listener address for health and metrics",
			EnvVars: []string{"PIXELFLUT_METRICS"},
			Value:   "127.0.0.1:9100",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server      string
	Transport   string
	Output      output.Format
	NoHeaders   bool
	Timeout     time.Duration
	CAFile      string
	MetricsAddr string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{
		Server:      c.String("server"),
		Transport:   c.String("transport"),
		Output:      format,
		NoHeaders:   c.Bool("no-headers"),
		Timeout:     c.Duration("timeout"),
		CAFile:      c.String("ca-file"),
		MetricsAddr: c.String("metrics-addr"),
	}, nil
}

// applyProfile fills flags that were not given on the command line or
// through the environment from the selected profile.
func applyProfile(c *cli.Context) error {
	cfg, err := config.Load(c.String("cli-config"))
	if err != nil {
		return err
	}
	c.App.Metadata[cliConfigKey] = cfg

	p, err := cfg.Profile(c.String("profile"))
	if err != nil {
		return err
	}
	values := map[string]string{
		"server":       p.Server,
		"transport":    p.Transport,
		"metrics-addr": p.MetricsAddr,
		"output":       cfg.Output,
	}
	if p.Timeout > 0 {
		values["timeout"] = p.Timeout.String()
	}
	for name, value := range values {
		if value == "" || c.IsSet(name) {
			continue
		}
		if err := c.Set(name, value); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
	}
	return nil
}

// dial connects to the server named by the global flags.
func dial(c *cli.Context) (*connection.Client, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	return connection.Dial(cmdContext(c), connection.Options{
		Transport: flags.Transport,
		Address:   flags.Server,
		Timeout:   flags.Timeout,
		CAFile:    flags.CAFile,
	})
}

// render writes data to the app's writer in the selected format.
func render(c *cli.Context, data any) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(flags.Output, flags.NoHeaders).Format(stdout(c), data)
}

func stdout(c *cli.Context) io.Writer {
	if c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return io.Discard
}

func stderr(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return io.Discard
}

// argCount fails unless exactly n positional arguments were given.
func argCount(c *cli.Context, n int) error {
	if c.NArg() != n {
		return cli.Exit(fmt.Sprintf("%s: expected %d arguments, got %d\nusage: %s %s",
			c.Command.Name, n, c.NArg(), c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return nil
}

func parseUint(name, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: want a non-negative integer", name, s)
	}
	return v, nil
}

func parseColor(s string) (domain.Color, bool, error) {
	color, hasAlpha, err := domain.ParseHex([]byte(s))
	if err != nil {
		return 0, false, fmt.Errorf("invalid color %q: want RRGGBB or RRGGBBAA", s)
	}
	return color, hasAlpha, nil
}
