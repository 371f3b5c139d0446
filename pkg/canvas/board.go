package canvas

import (
	"fmt"
	"sync"
)

// Shape is one shape held by the in-memory board.
type Shape struct {
	Kind     string
	Geometry Geometry
	Props    map[string]any
}

// Binding records an arrow terminal attached to a shape.
type Binding struct {
	From     Handle
	To       Handle
	Terminal string
	Anchor   Anchor
}

// Board is an in-memory Surface. It backs the HTTP demo surface and the
// package tests; a production deployment would swap in a surface that
// forwards to a real whiteboard client.
type Board struct {
	mu       sync.Mutex
	shapes   map[Handle]*Shape
	bindings []Binding
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{shapes: make(map[Handle]*Shape)}
}

// CreateShape implements Surface.
func (b *Board) CreateShape(kind string, h Handle, g Geometry, props map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.shapes[h]; ok {
		return fmt.Errorf("shape %s already exists", h)
	}

	copied := make(map[string]any, len(props))
	for k, v := range props {
		copied[k] = v
	}
	b.shapes[h] = &Shape{Kind: kind, Geometry: g, Props: copied}
	return nil
}

// UpdateShape implements Surface. "x" and "y" keys update position,
// "w" and "h" update extent, everything else merges into props.
func (b *Board) UpdateShape(h Handle, partial map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	shape, ok := b.shapes[h]
	if !ok {
		return fmt.Errorf("shape %s not found", h)
	}

	for k, v := range partial {
		switch k {
		case "x", "y", "w", "h":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("shape %s: %s must be a number", h, k)
			}
			switch k {
			case "x":
				shape.Geometry.X = f
			case "y":
				shape.Geometry.Y = f
			case "w":
				shape.Geometry.W = f
			case "h":
				shape.Geometry.H = f
			}
		default:
			shape.Props[k] = v
		}
	}
	return nil
}

// DeleteShapes implements Surface. Unknown handles are ignored;
// bindings touching a deleted shape go with it.
func (b *Board) DeleteShapes(hs []Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	deleted := make(map[Handle]bool, len(hs))
	for _, h := range hs {
		if _, ok := b.shapes[h]; ok {
			delete(b.shapes, h)
			deleted[h] = true
		}
	}

	kept := b.bindings[:0]
	for _, binding := range b.bindings {
		if deleted[binding.From] || deleted[binding.To] {
			continue
		}
		kept = append(kept, binding)
	}
	b.bindings = kept
	return nil
}

// ShapeGeometry implements Surface.
func (b *Board) ShapeGeometry(h Handle) (Geometry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	shape, ok := b.shapes[h]
	if !ok {
		return Geometry{}, false
	}
	return shape.Geometry, true
}

// CreateBinding implements Surface.
func (b *Board) CreateBinding(from, to Handle, terminal string, anchor Anchor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.shapes[from]; !ok {
		return fmt.Errorf("binding source %s not found", from)
	}
	if _, ok := b.shapes[to]; !ok {
		return fmt.Errorf("binding target %s not found", to)
	}
	b.bindings = append(b.bindings, Binding{From: from, To: to, Terminal: terminal, Anchor: anchor})
	return nil
}

// Shape returns a copy of the shape at h, if present.
func (b *Board) Shape(h Handle) (Shape, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	shape, ok := b.shapes[h]
	if !ok {
		return Shape{}, false
	}

	props := make(map[string]any, len(shape.Props))
	for k, v := range shape.Props {
		props[k] = v
	}
	return Shape{Kind: shape.Kind, Geometry: shape.Geometry, Props: props}, true
}

// ShapeCount returns the number of shapes on the board.
func (b *Board) ShapeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.shapes)
}

// Bindings returns a copy of all bindings.
func (b *Board) Bindings() []Binding {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Binding, len(b.bindings))
	copy(out, b.bindings)
	return out
}
