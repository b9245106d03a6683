package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pixelflut-go/internal/cli/output"
	"github.com/yndnr/pixelflut-go/internal/core/domain"
	"github.com/yndnr/pixelflut-go/internal/server/protocol"
)

type sizeResult struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

type pixelResult struct {
	X     uint64 `json:"x" yaml:"x"`
	Y     uint64 `json:"y" yaml:"y"`
	Color string `json:"color" yaml:"color"`
}

type rectResult struct {
	X      uint64 `json:"x" yaml:"x"`
	Y      uint64 `json:"y" yaml:"y"`
	Width  uint64 `json:"width" yaml:"width"`
	Height uint64 `json:"height" yaml:"height"`
	Color  string `json:"color" yaml:"color"`
	Pixels int64  `json:"pixels" yaml:"pixels"`
}

type colorCount struct {
	Color  string  `json:"color" yaml:"color"`
	Pixels int     `json:"pixels" yaml:"pixels"`
	Share  float64 `json:"share" yaml:"share"`
}

type stateResult struct {
	Encoding       string       `json:"encoding" yaml:"encoding"`
	Width          int          `json:"width" yaml:"width"`
	Height         int          `json:"height" yaml:"height"`
	Pixels         int          `json:"pixels" yaml:"pixels"`
	Translucent    int          `json:"translucent" yaml:"translucent"`
	DistinctColors int          `json:"distinct_colors" yaml:"distinct_colors"`
	TopColors      []colorCount `json:"top_colors" yaml:"top_colors" table:"-"`
}

// SizeCommand prints the canvas dimensions.
func SizeCommand() *cli.Command {
	return &cli.Command{
		Name:   "size",
		Usage:  "Print the canvas size",
		Action: runSize,
	}
}

func runSize(c *cli.Context) error {
	if err := argCount(c, 0); err != nil {
		return err
	}
	client, err := dial(c)
	if err != nil {
		return err
	}
	defer client.Close()

	w, h, err := client.Size()
	if err != nil {
		return err
	}
	return render(c, sizeResult{Width: w, Height: h})
}

// GetCommand reads one pixel.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read the color of one pixel",
		ArgsUsage: "X Y",
		Action:    runGet,
	}
}

func runGet(c *cli.Context) error {
	if err := argCount(c, 2); err != nil {
		return err
	}
	x, err := parseUint("x", c.Args().Get(0))
	if err != nil {
		return err
	}
	y, err := parseUint("y", c.Args().Get(1))
	if err != nil {
		return err
	}

	client, err := dial(c)
	if err != nil {
		return err
	}
	defer client.Close()

	px, err := client.GetPixel(x, y)
	if err != nil {
		return fmt.Errorf("get %d %d: %w (out of bounds pixels get no reply)", x, y, err)
	}
	return render(c, pixelResult{X: px.X, Y: px.Y, Color: px.Hex})
}

// SetCommand writes one pixel.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set the color of one pixel",
		ArgsUsage: "X Y RRGGBB[AA]",
		Action:    runSet,
	}
}

func runSet(c *cli.Context) error {
	if err := argCount(c, 3); err != nil {
		return err
	}
	x, err := parseUint("x", c.Args().Get(0))
	if err != nil {
		return err
	}
	y, err := parseUint("y", c.Args().Get(1))
	if err != nil {
		return err
	}
	color, hasAlpha, err := parseColor(c.Args().Get(2))
	if err != nil {
		return err
	}

	client, err := dial(c)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SetPixel(x, y, color, hasAlpha); err != nil {
		return err
	}
	return render(c, pixelResult{X: x, Y: y, Color: string(color.AppendHex(nil, hasAlpha))})
}

// RectCommand fills a rectangle with one color.
func RectCommand() *cli.Command {
	return &cli.Command{
		Name:      "rect",
		Usage:     "Fill a rectangle with one color",
		ArgsUsage: "X Y WIDTH HEIGHT RRGGBB[AA]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Do not draw a progress bar",
			},
		},
		Action: runRect,
	}
}

func runRect(c *cli.Context) error {
	if err := argCount(c, 5); err != nil {
		return err
	}
	var dims [4]uint64
	for i, name := range []string{"x", "y", "width", "height"} {
		v, err := parseUint(name, c.Args().Get(i))
		if err != nil {
			return err
		}
		dims[i] = v
	}
	x, y, w, h := dims[0], dims[1], dims[2], dims[3]
	if w == 0 || h == 0 {
		return fmt.Errorf("rect: width and height must be positive")
	}
	color, hasAlpha, err := parseColor(c.Args().Get(4))
	if err != nil {
		return err
	}

	client, err := dial(c)
	if err != nil {
		return err
	}
	defer client.Close()

	var progress func(done, total int64)
	var bar *output.ProgressBar
	if !c.Bool("no-progress") {
		bar = output.NewProgressBar(stderr(c), "rect")
		progress = bar.Update
	}
	if err := client.Fill(x, y, w, h, color, hasAlpha, progress); err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
	}

	return render(c, rectResult{
		X: x, Y: y, Width: w, Height: h,
		Color:  string(color.AppendHex(nil, hasAlpha)),
		Pixels: int64(w * h),
	})
}

// StateCommand fetches the whole canvas and prints color statistics.
func StateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Fetch the whole canvas and summarize its colors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "encoding",
				Usage: "Canvas encoding: rgb64, rgba64",
				Value: string(protocol.EncodingRGBA64),
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of most used colors to list",
				Value: 5,
			},
		},
		Action: runState,
	}
}

func runState(c *cli.Context) error {
	if err := argCount(c, 0); err != nil {
		return err
	}
	enc, ok := protocol.ParseEncoding([]byte(c.String("encoding")))
	if !ok {
		return fmt.Errorf("unknown encoding %q (want rgb64 or rgba64)", c.String("encoding"))
	}

	client, err := dial(c)
	if err != nil {
		return err
	}
	defer client.Close()

	w, h, err := client.Size()
	if err != nil {
		return err
	}
	gotEnc, pixels, err := client.State(enc)
	if err != nil {
		return err
	}
	if len(pixels) != w*h {
		return fmt.Errorf("state: got %d pixels for a %dx%d canvas", len(pixels), w, h)
	}

	result := summarize(pixels, c.Int("top"))
	result.Encoding = string(gotEnc)
	result.Width, result.Height = w, h
	if err := render(c, result); err != nil {
		return err
	}

	// Text output lists the top colors as their own table.
	if flags, _ := ParseGlobalFlags(c); flags.Output == output.FormatText && len(result.TopColors) > 0 {
		fmt.Fprintln(stdout(c))
		return render(c, result.TopColors)
	}
	return nil
}

// summarize counts colors; ties in the top list are ordered by color value.
func summarize(pixels []domain.Color, top int) stateResult {
	counts := make(map[domain.Color]int)
	var translucent int
	for _, px := range pixels {
		counts[px]++
		if !px.Opaque() {
			translucent++
		}
	}

	colors := make([]domain.Color, 0, len(counts))
	for color := range counts {
		colors = append(colors, color)
	}
	sort.Slice(colors, func(i, j int) bool {
		ci, cj := counts[colors[i]], counts[colors[j]]
		if ci != cj {
			return ci > cj
		}
		return colors[i] < colors[j]
	})
	if top < 0 {
		top = 0
	}
	if len(colors) > top {
		colors = colors[:top]
	}

	res := stateResult{
		Pixels:         len(pixels),
		Translucent:    translucent,
		DistinctColors: len(counts),
		TopColors:      make([]colorCount, 0, len(colors)),
	}
	for _, color := range colors {
		res.TopColors = append(res.TopColors, colorCount{
			Color:  color.String(),
			Pixels: counts[color],
			Share:  float64(counts[color]) / float64(len(pixels)),
		})
	}
	return res
}

// ServerHelpCommand prints the server's protocol help.
func ServerHelpCommand() *cli.Command {
	return &cli.Command{
		Name:   "server-help",
		Usage:  "Print the protocol help text sent by the server",
		Action: runServerHelp,
	}
}

func runServerHelp(c *cli.Context) error {
	client, err := dial(c)
	if err != nil {
		return err
	}
	defer client.Close()

	text, err := client.Help()
	if err != nil {
		return err
	}
	return render(c, text)
}
