package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pixelflut-go/internal/cli/config"
)

type profileRow struct {
	Name        string `json:"name" yaml:"name"`
	Current     bool   `json:"current" yaml:"current"`
	Server      string `json:"server" yaml:"server"`
	Transport   string `json:"transport" yaml:"transport"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
}

// ProfileCommand returns the profile subcommand group.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage connection profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List profiles",
				Action: profileList,
			},
			{
				Name:      "use",
				Usage:     "Make a profile the current one",
				ArgsUsage: "NAME",
				Action:    profileUse,
			},
			{
				Name:      "save",
				Usage:     "Save the current connection flags as a profile",
				ArgsUsage: "NAME",
				Action:    profileSave,
			},
		},
	}
}

func loadedConfig(c *cli.Context) (*config.CLIConfig, error) {
	if cfg, ok := c.App.Metadata[cliConfigKey].(*config.CLIConfig); ok {
		return cfg, nil
	}
	return config.Load(c.String("cli-config"))
}

func profileList(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	rows := make([]profileRow, 0, len(cfg.Profiles))
	for _, name := range cfg.Names() {
		p := cfg.Profiles[name]
		rows = append(rows, profileRow{
			Name:        name,
			Current:     name == cfg.Current,
			Server:      p.Server,
			Transport:   p.Transport,
			MetricsAddr: p.MetricsAddr,
		})
	}
	return render(c, rows)
}

func profileUse(c *cli.Context) error {
	if err := argCount(c, 1); err != nil {
		return err
	}
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	name := c.Args().First()
	if _, err := cfg.Profile(name); err != nil {
		return err
	}
	cfg.Current = name
	if err := config.Save(cfg, c.String("cli-config")); err != nil {
		return err
	}
	return render(c, fmt.Sprintf("current profile: %s", name))
}

func profileSave(c *cli.Context) error {
	if err := argCount(c, 1); err != nil {
		return err
	}
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	name := c.Args().First()
	cfg.Profiles[name] = config.Profile{
		Server:      flags.Server,
		Transport:   flags.Transport,
		MetricsAddr: flags.MetricsAddr,
		Timeout:     flags.Timeout,
	}
	if err := config.Save(cfg, c.String("cli-config")); err != nil {
		return err
	}
	return render(c, fmt.Sprintf("saved profile: %s", name))
}
