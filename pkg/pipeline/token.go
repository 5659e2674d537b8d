package pipeline

import (
	"math"
	"strings"

	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/layout"
)

// TokenRequest describes a single hand-placed token.
type TokenRequest struct {
	Name        string  `json:"name"`
	Image       string  `json:"image"`
	SizeCode    int     `json:"size_code"`
	Disposition int     `json:"disposition"`
	Lantern     bool    `json:"lantern"`
	ClickX      float64 `json:"click_x"`
	ClickY      float64 `json:"click_y"`
	GridSize    int     `json:"grid_size"`
}

// DefaultLantern returns the light attached to tokens that carry a lantern.
func DefaultLantern() *Light {
	return &Light{Dim: 60, Bright: 30, Angle: 360, Color: "#000000", Alpha: 0}
}

// NewToken builds an unlinked token centred on the grid cell under the
// click point.
func NewToken(req TokenRequest) (Token, error) {
	if req.GridSize <= 0 {
		return Token{}, errors.New(errors.ErrCodeConfiguration, "grid size must be positive, got %d", req.GridSize)
	}
	if err := errors.ValidateName(req.Name); err != nil {
		return Token{}, err
	}
	if req.Disposition < DispositionSecret || req.Disposition > DispositionFriendly {
		return Token{}, errors.New(errors.ErrCodeInvalidInput, "unknown disposition %d", req.Disposition)
	}

	span := GridSpan(req.SizeCode)
	scale := IconScale(req.SizeCode)
	sizePx := float64(span * req.GridSize)
	cx := snapCenter(req.ClickX, req.GridSize)
	cy := snapCenter(req.ClickY, req.GridSize)

	tok := Token{
		Name:        strings.TrimSpace(req.Name),
		X:           cx - sizePx/2,
		Y:           cy - sizePx/2,
		Width:       span,
		Height:      span,
		Texture:     Texture{Src: req.Image, ScaleX: scale, ScaleY: scale},
		Disposition: req.Disposition,
		DisplayName: DisplayHover,
	}
	if req.Lantern {
		tok.Light = DefaultLantern()
	}
	return tok, nil
}

// PlacedToken builds the unlinked token for an actor at a layout placement.
func PlacedToken(a Actor, p layout.Placement, gridSize, displayMode int) Token {
	x, y := p.Pixels(gridSize)
	proto := a.Prototype
	tok := Token{
		Name:        tokenName(a),
		X:           float64(x),
		Y:           float64(y),
		Width:       p.Item.Width,
		Height:      p.Item.Height,
		Texture:     proto.Texture,
		Disposition: proto.Disposition,
		DisplayName: displayMode,
		Linked:      false,
	}
	if proto.Light != nil {
		light := *proto.Light
		tok.Light = &light
	}
	return tok
}

func tokenName(a Actor) string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(a.Prototype.Name); n != "" {
		return n
	}
	return "Token"
}

func snapCenter(v float64, gridSize int) float64 {
	g := float64(gridSize)
	return math.Floor(v/g)*g + g/2
}
