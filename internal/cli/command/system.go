package command

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pixelflut-go/internal/cli/connection"
	"github.com/yndnr/pixelflut-go/internal/cli/output"
)

type healthResult struct {
	Target string `json:"target" yaml:"target"`
	Status string `json:"status" yaml:"status"`
}

type metricSample struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// HealthCommand checks the server's /healthz endpoint.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check server health via the metrics listener",
		Action: runHealth,
	}
}

func runHealth(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdContext(c), flags.Timeout)
	defer cancel()

	client, err := connection.NewHTTPClientWithCA(flags.MetricsAddr, flags.Timeout, flags.CAFile)
	if err != nil {
		return err
	}
	if err := client.Health(ctx); err != nil {
		_ = render(c, healthResult{Target: flags.MetricsAddr, Status: "unhealthy"})
		return cli.Exit(err.Error(), 1)
	}
	return render(c, healthResult{Target: flags.MetricsAddr, Status: "ok"})
}

// MetricsCommand prints the server's Prometheus metrics.
func MetricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Print server metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Only show samples whose name starts with this prefix",
				Value: "pixelflut_",
			},
		},
		Action: runMetrics,
	}
}

func runMetrics(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdContext(c), flags.Timeout)
	defer cancel()

	client, err := connection.NewHTTPClientWithCA(flags.MetricsAddr, flags.Timeout, flags.CAFile)
	if err != nil {
		return err
	}
	body, err := client.Metrics(ctx)
	if err != nil {
		return err
	}

	samples := parseSamples(body, c.String("prefix"))
	if flags.Output == output.FormatText {
		table := &output.Table{Headers: []string{"METRIC", "VALUE"}}
		for _, s := range samples {
			table.AddRow(s.Name, strconv.FormatFloat(s.Value, 'g', -1, 64))
		}
		return render(c, table)
	}
	return render(c, samples)
}

// parseSamples reads sample lines of the Prometheus text format, keeping
// labels as part of the name.
func parseSamples(body, prefix string) []metricSample {
	var samples []metricSample
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || !strings.HasPrefix(line, prefix) {
			continue
		}
		i := strings.LastIndexByte(line, ' ')
		if i < 0 {
			continue
		}
		v, err := strconv.ParseFloat(line[i+1:], 64)
		if err != nil {
			continue
		}
		samples = append(samples, metricSample{Name: line[:i], Value: v})
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return samples
}

func cmdContext(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
