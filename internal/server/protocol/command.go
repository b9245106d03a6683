package protocol

import "github.com/yndnr/pixelflut-go/internal/core/domain"

// Command is a decoded protocol command.
//
// The set of implementations is closed: Help, Size, GetPixel, SetPixel,
// State and Malformed.
type Command interface {
	// Name is a stable lower-case label used in logs and metrics.
	Name() string
	command()
}

// Help requests the usage text.
type Help struct{}

// Size requests the canvas dimensions.
type Size struct{}

// GetPixel requests the color at (X, Y).
type GetPixel struct {
	X, Y uint64
}

// SetPixel writes Color at (X, Y). HasAlpha records whether the client
// sent RRGGBBAA; for RRGGBB the alpha channel of Color is 255.
type SetPixel struct {
	X, Y     uint64
	Color    domain.Color
	HasAlpha bool
}

// State requests the whole canvas in the given encoding.
type State struct {
	Encoding Encoding
}

// Malformed is any line that does not match the grammar.
type Malformed struct {
	Line   string
	Reason string
}

func (Help) Name() string      { return "help" }
func (Size) Name() string      { return "size" }
func (GetPixel) Name() string  { return "px_get" }
func (SetPixel) Name() string  { return "px_set" }
func (State) Name() string     { return "state" }
func (Malformed) Name() string { return "malformed" }

func (Help) command()      {}
func (Size) command()      {}
func (GetPixel) command()  {}
func (SetPixel) command()  {}
func (State) command()     {}
func (Malformed) command() {}
