package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pixelflut-go/internal/storage/snapshot"
)

type snapshotResult struct {
	Path         string `json:"path" yaml:"path"`
	Version      uint16 `json:"version" yaml:"version"`
	Width        uint32 `json:"width" yaml:"width"`
	Height       uint32 `json:"height" yaml:"height"`
	FileSize     int64  `json:"file_size" yaml:"file_size"`
	ExpectedSize int64  `json:"expected_size" yaml:"expected_size"`
	Complete     bool   `json:"complete" yaml:"complete"`
	Verified     *bool  `json:"verified,omitempty" yaml:"verified,omitempty"`
}

// SnapshotCommand returns the snapshot subcommand group.
func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Work with canvas snapshot files",
		Subcommands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Show the header of a snapshot file",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Also read every pixel record",
					},
				},
				Action: snapshotInspect,
			},
		},
	}
}

func snapshotInspect(c *cli.Context) error {
	if err := argCount(c, 1); err != nil {
		return err
	}
	path := c.Args().First()

	hdr, err := snapshot.ReadHeader(path)
	if err != nil {
		return err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}

	expected := int64(snapshot.HeaderSize) + int64(hdr.Width)*int64(hdr.Height)*snapshot.RecordSize
	res := snapshotResult{
		Path:         path,
		Version:      hdr.Version,
		Width:        hdr.Width,
		Height:       hdr.Height,
		FileSize:     stat.Size(),
		ExpectedSize: expected,
		Complete:     stat.Size() == expected,
	}

	if c.Bool("verify") {
		store, err := snapshot.NewStore(path)
		if err != nil {
			return err
		}
		_, _, loadErr := store.Load(int(hdr.Width), int(hdr.Height))
		ok := loadErr == nil
		res.Verified = &ok
		if err := render(c, res); err != nil {
			return err
		}
		if loadErr != nil {
			return fmt.Errorf("verify %s: %w", path, loadErr)
		}
		return nil
	}
	return render(c, res)
}
