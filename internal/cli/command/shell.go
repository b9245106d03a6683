package command

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pixelflut-go/internal/cli/repl"
)

// ShellCommand opens an interactive protocol session.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Type protocol commands interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "History file; empty keeps history in memory",
				Value: repl.DefaultHistoryFile(),
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	client, err := dial(c)
	if err != nil {
		return err
	}
	defer client.Close()

	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	return repl.New(client, in, stdout(c), repl.NewHistory(c.String("history-file"))).Run()
}
