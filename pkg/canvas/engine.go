package canvas

import (
	"fmt"

	"tutorboard/pkg/logx"
)

// Geometry is a shape's position and extent in canvas space.
type Geometry struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Anchor is a point an arrow terminal attaches at, in canvas space.
type Anchor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Arrow terminal names for bindings.
const (
	TerminalStart = "start"
	TerminalEnd   = "end"
)

// Fallback half-extents for arrow anchors when an endpoint's geometry
// does not carry a usable extent.
const (
	fallbackHalfWidth  = 60.0
	fallbackHalfHeight = 30.0
)

// Surface is the capability set the engine needs from a rendering
// surface. The engine depends only on this interface, never on a
// specific rendering technology.
type Surface interface {
	// CreateShape creates a shape of the given kind at the handle.
	CreateShape(kind string, h Handle, g Geometry, props map[string]any) error

	// UpdateShape merges the partial props into an existing shape.
	// The keys "x" and "y" address position; all other keys address
	// shape props.
	UpdateShape(h Handle, partial map[string]any) error

	// DeleteShapes removes every listed shape.
	DeleteShapes(hs []Handle) error

	// ShapeGeometry reports a shape's current geometry, or false if
	// the surface cannot provide it.
	ShapeGeometry(h Handle) (Geometry, bool)

	// CreateBinding attaches an arrow terminal to a shape so the arrow
	// tracks the shape when it later moves.
	CreateBinding(from, to Handle, terminal string, anchor Anchor) error
}

// Recorder receives per-action outcomes for metrics. Implementations
// must be safe to call with any kind/status label pair.
type Recorder interface {
	ObserveAction(kind, status string)
}

// Engine applies parsed actions to a Surface, one canvas session per
// engine instance. Each action runs inside its own fault boundary: a
// failure is logged and skipped so one bad command can never abort the
// batch or corrupt shapes already applied.
type Engine struct {
	surface  Surface
	resolver *Resolver
	logger   *logx.Logger
	recorder Recorder
}

// NewEngine creates an engine bound to one rendering surface.
// recorder may be nil.
func NewEngine(surface Surface, recorder Recorder) *Engine {
	return &Engine{
		surface:  surface,
		resolver: NewResolver(),
		logger:   logx.NewLogger("canvas"),
		recorder: recorder,
	}
}

// Resolver exposes the engine's handle map for inspection in tests and
// status endpoints.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// ApplyAll applies actions in array order. Order is semantically
// significant: the protocol mandates declaration-before-use, so an
// arrow must appear after the creates for both its endpoints. No
// reordering or dependency sort is performed.
func (e *Engine) ApplyAll(actions []Action) {
	for _, action := range actions {
		e.Apply(action)
	}
}

// Apply applies a single action. Failures are contained: they are
// logged with the action's kind and id and the engine moves on.
func (e *Engine) Apply(action Action) {
	err := e.applyOne(action)
	if err != nil {
		e.logger.Warn("action %s skipped: %v", action.Kind(), err)
		e.observe(action.Kind(), "skipped")
		return
	}
	e.observe(action.Kind(), "applied")
}

func (e *Engine) observe(kind, status string) {
	if e.recorder != nil {
		e.recorder.ObserveAction(kind, status)
	}
}

// applyOne dispatches on the action variant. A panic escaping the
// surface is converted into an error so it stays inside this action's
// fault boundary.
func (e *Engine) applyOne(action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("surface panic: %v", r)
		}
	}()

	switch a := action.(type) {
	case CreateGeo:
		return e.applyCreateGeo(&a)
	case CreateArrow:
		return e.applyCreateArrow(&a)
	case CreateText:
		return e.applyCreateText(&a)
	case Move:
		return e.applyMove(&a)
	case Style:
		return e.applyStyle(&a)
	case Clear:
		return e.applyClear()
	default:
		return fmt.Errorf("unknown action variant %T", action)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (e *Engine) applyCreateGeo(a *CreateGeo) error {
	w := DefaultGeoWidth
	if a.W != nil {
		w = *a.W
	}
	height := DefaultGeoHeight
	if a.H != nil {
		height = *a.H
	}

	props := map[string]any{
		"geo":   a.Geo,
		"text":  a.Text,
		"color": orDefault(a.Color, DefaultColor),
		"fill":  orDefault(a.Fill, DefaultFill),
	}

	// A repeated create with an already-known id reuses the handle and
	// updates the shape in place rather than erroring.
	if h, ok := e.resolver.Lookup(a.ID); ok {
		partial := map[string]any{"x": a.X, "y": a.Y, "w": w, "h": height}
		for k, v := range props {
			partial[k] = v
		}
		if err := e.surface.UpdateShape(h, partial); err != nil {
			return fmt.Errorf("recreate geo %q: %w", a.ID, err)
		}
		return nil
	}

	h := e.resolver.Resolve(a.ID)
	g := Geometry{X: a.X, Y: a.Y, W: w, H: height}
	if err := e.surface.CreateShape("geo", h, g, props); err != nil {
		return fmt.Errorf("create geo %q: %w", a.ID, err)
	}
	return nil
}

func (e *Engine) applyCreateArrow(a *CreateArrow) error {
	from, ok := e.resolver.Lookup(a.FromID)
	if !ok {
		return fmt.Errorf("arrow %q: unknown fromId %q", a.ID, a.FromID)
	}
	to, ok := e.resolver.Lookup(a.ToID)
	if !ok {
		return fmt.Errorf("arrow %q: unknown toId %q", a.ID, a.ToID)
	}

	start := e.anchorFor(from)
	end := e.anchorFor(to)

	if h, ok := e.resolver.Lookup(a.ID); ok {
		partial := map[string]any{
			"text":  a.Label,
			"color": orDefault(a.Color, DefaultColor),
			"start": start,
			"end":   end,
		}
		if err := e.surface.UpdateShape(h, partial); err != nil {
			return fmt.Errorf("recreate arrow %q: %w", a.ID, err)
		}
		return nil
	}

	h := e.resolver.Resolve(a.ID)

	g := Geometry{X: start.X, Y: start.Y}
	props := map[string]any{
		"text":  a.Label,
		"color": orDefault(a.Color, DefaultColor),
		"start": start,
		"end":   end,
	}
	if err := e.surface.CreateShape("arrow", h, g, props); err != nil {
		return fmt.Errorf("create arrow %q: %w", a.ID, err)
	}

	// Bind both terminals so the arrow stays attached when an endpoint
	// later moves.
	if err := e.surface.CreateBinding(h, from, TerminalStart, Anchor{X: 0.5, Y: 0.5}); err != nil {
		return fmt.Errorf("bind arrow %q start: %w", a.ID, err)
	}
	if err := e.surface.CreateBinding(h, to, TerminalEnd, Anchor{X: 0.5, Y: 0.5}); err != nil {
		return fmt.Errorf("bind arrow %q end: %w", a.ID, err)
	}
	return nil
}

// anchorFor computes an arrow terminal's point anchor from the
// endpoint's geometric center, falling back to a default half-extent
// when the surface cannot provide a usable extent.
func (e *Engine) anchorFor(h Handle) Anchor {
	g, ok := e.surface.ShapeGeometry(h)
	if !ok {
		return Anchor{}
	}

	halfW, halfH := g.W/2, g.H/2
	if g.W == 0 {
		halfW = fallbackHalfWidth
	}
	if g.H == 0 {
		halfH = fallbackHalfHeight
	}
	return Anchor{X: g.X + halfW, Y: g.Y + halfH}
}

func (e *Engine) applyCreateText(a *CreateText) error {
	props := map[string]any{
		"text":  a.Text,
		"size":  orDefault(a.Size, DefaultTextSize),
		"color": orDefault(a.Color, DefaultColor),
	}

	if h, ok := e.resolver.Lookup(a.ID); ok {
		partial := map[string]any{"x": a.X, "y": a.Y}
		for k, v := range props {
			partial[k] = v
		}
		if err := e.surface.UpdateShape(h, partial); err != nil {
			return fmt.Errorf("recreate text %q: %w", a.ID, err)
		}
		return nil
	}

	h := e.resolver.Resolve(a.ID)
	g := Geometry{X: a.X, Y: a.Y}
	if err := e.surface.CreateShape("text", h, g, props); err != nil {
		return fmt.Errorf("create text %q: %w", a.ID, err)
	}
	return nil
}

func (e *Engine) applyMove(a *Move) error {
	h, ok := e.resolver.Lookup(a.ID)
	if !ok {
		return fmt.Errorf("move: unknown id %q", a.ID)
	}

	if err := e.surface.UpdateShape(h, map[string]any{"x": a.X, "y": a.Y}); err != nil {
		return fmt.Errorf("move %q: %w", a.ID, err)
	}
	return nil
}

func (e *Engine) applyStyle(a *Style) error {
	h, ok := e.resolver.Lookup(a.ID)
	if !ok {
		return fmt.Errorf("style: unknown id %q", a.ID)
	}

	// Partial update: only the supplied fields are merged.
	partial := make(map[string]any)
	if a.Color != "" {
		partial["color"] = a.Color
	}
	if a.Fill != "" {
		partial["fill"] = a.Fill
	}
	if len(partial) == 0 {
		return nil
	}

	if err := e.surface.UpdateShape(h, partial); err != nil {
		return fmt.Errorf("style %q: %w", a.ID, err)
	}
	return nil
}

func (e *Engine) applyClear() error {
	handles := e.resolver.Clear()
	if len(handles) == 0 {
		return nil
	}
	if err := e.surface.DeleteShapes(handles); err != nil {
		return fmt.Errorf("clear %d shapes: %w", len(handles), err)
	}
	return nil
}
