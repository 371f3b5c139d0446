// Package canvas implements the whiteboard action protocol: the closed set
// of diagram commands a model may emit, the wire codec that extracts them
// from free-form text, and the execution engine that applies them to a
// rendering surface through symbolic-id resolution.
package canvas

import (
	"encoding/json"
	"fmt"
)

// Action kinds on the wire ("action" field, plus "type" for creates).
const (
	wireActionCreate = "create"
	wireActionMove   = "move"
	wireActionStyle  = "style"
	wireActionClear  = "clear"

	wireTypeGeo   = "geo"
	wireTypeArrow = "arrow"
	wireTypeText  = "text"
)

// Defaults applied when optional props are absent.
const (
	DefaultGeoWidth  = 120.0
	DefaultGeoHeight = 60.0
	DefaultColor     = "black"
	DefaultFill      = "none"
	DefaultTextSize  = "m"
)

// Action is one diagram command. The set of implementations is closed:
// CreateGeo, CreateArrow, CreateText, Move, Style, Clear.
type Action interface {
	// Kind returns a stable name for the action variant, used in logs
	// and metrics labels.
	Kind() string
}

// CreateGeo creates a geometric shape (rectangle, ellipse, triangle, ...).
type CreateGeo struct {
	ID    string
	X     float64
	Y     float64
	Geo   string
	Text  string
	W     *float64
	H     *float64
	Color string
	Fill  string
}

// Kind implements Action.
func (CreateGeo) Kind() string { return "create_geo" }

// CreateArrow creates an arrow between two previously created shapes.
// FromID and ToID are symbolic ids that must already be resolved.
type CreateArrow struct {
	ID     string
	FromID string
	ToID   string
	Label  string
	Color  string
}

// Kind implements Action.
func (CreateArrow) Kind() string { return "create_arrow" }

// CreateText creates a free-standing text label.
type CreateText struct {
	ID    string
	X     float64
	Y     float64
	Text  string
	Size  string
	Color string
}

// Kind implements Action.
func (CreateText) Kind() string { return "create_text" }

// Move repositions an existing shape, preserving its other attributes.
type Move struct {
	ID string
	X  float64
	Y  float64
}

// Kind implements Action.
func (Move) Kind() string { return "move" }

// Style merges the supplied style fields into an existing shape.
// Empty fields are left untouched on the shape.
type Style struct {
	ID    string
	Color string
	Fill  string
}

// Kind implements Action.
func (Style) Kind() string { return "style" }

// Clear deletes every shape tracked in the current session.
type Clear struct{}

// Kind implements Action.
func (Clear) Kind() string { return "clear" }

// wireAction is the envelope shape of one element of the wire array.
type wireAction struct {
	Action string          `json:"action"`
	Type   string          `json:"type,omitempty"`
	ID     string          `json:"id,omitempty"`
	Props  json.RawMessage `json:"props,omitempty"`
}

type geoProps struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Geo   string   `json:"geo"`
	Text  string   `json:"text,omitempty"`
	W     *float64 `json:"w,omitempty"`
	H     *float64 `json:"h,omitempty"`
	Color string   `json:"color,omitempty"`
	Fill  string   `json:"fill,omitempty"`
}

type arrowProps struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Label  string `json:"label,omitempty"`
	Color  string `json:"color,omitempty"`
}

type textProps struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Size  string  `json:"size,omitempty"`
	Color string  `json:"color,omitempty"`
}

type moveProps struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type styleProps struct {
	Color string `json:"color,omitempty"`
	Fill  string `json:"fill,omitempty"`
}

// DecodeActions decodes a JSON array of wire actions into the closed
// Action set. Elements with an unknown action/type combination or
// undecodable props are dropped, not coerced; a malformed array is an
// error for the whole batch.
func DecodeActions(data []byte) ([]Action, error) {
	var raw []wireAction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode action array: %w", err)
	}

	actions := make([]Action, 0, len(raw))
	for i := range raw {
		action, err := decodeOne(&raw[i])
		if err != nil {
			// Drop the element, keep the batch.
			continue
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func decodeOne(w *wireAction) (Action, error) {
	switch w.Action {
	case wireActionCreate:
		switch w.Type {
		case wireTypeGeo:
			var p geoProps
			if err := json.Unmarshal(w.Props, &p); err != nil {
				return nil, fmt.Errorf("geo props for %q: %w", w.ID, err)
			}
			return CreateGeo{ID: w.ID, X: p.X, Y: p.Y, Geo: p.Geo, Text: p.Text, W: p.W, H: p.H, Color: p.Color, Fill: p.Fill}, nil
		case wireTypeArrow:
			var p arrowProps
			if err := json.Unmarshal(w.Props, &p); err != nil {
				return nil, fmt.Errorf("arrow props for %q: %w", w.ID, err)
			}
			return CreateArrow{ID: w.ID, FromID: p.FromID, ToID: p.ToID, Label: p.Label, Color: p.Color}, nil
		case wireTypeText:
			var p textProps
			if err := json.Unmarshal(w.Props, &p); err != nil {
				return nil, fmt.Errorf("text props for %q: %w", w.ID, err)
			}
			return CreateText{ID: w.ID, X: p.X, Y: p.Y, Text: p.Text, Size: p.Size, Color: p.Color}, nil
		default:
			return nil, fmt.Errorf("unknown create type %q", w.Type)
		}
	case wireActionMove:
		var p moveProps
		if err := json.Unmarshal(w.Props, &p); err != nil {
			return nil, fmt.Errorf("move props for %q: %w", w.ID, err)
		}
		return Move{ID: w.ID, X: p.X, Y: p.Y}, nil
	case wireActionStyle:
		var p styleProps
		if err := json.Unmarshal(w.Props, &p); err != nil {
			return nil, fmt.Errorf("style props for %q: %w", w.ID, err)
		}
		return Style{ID: w.ID, Color: p.Color, Fill: p.Fill}, nil
	case wireActionClear:
		return Clear{}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", w.Action)
	}
}

// EncodeActions encodes actions back to the wire array. Inverse of
// DecodeActions for every action DecodeActions accepts.
func EncodeActions(actions []Action) ([]byte, error) {
	raw := make([]wireAction, 0, len(actions))
	for _, action := range actions {
		w, err := encodeOne(action)
		if err != nil {
			return nil, err
		}
		raw = append(raw, w)
	}
	return json.Marshal(raw)
}

func encodeOne(action Action) (wireAction, error) {
	marshal := func(props any) (json.RawMessage, error) {
		data, err := json.Marshal(props)
		if err != nil {
			return nil, fmt.Errorf("encode %s props: %w", action.Kind(), err)
		}
		return data, nil
	}

	switch a := action.(type) {
	case CreateGeo:
		props, err := marshal(geoProps{X: a.X, Y: a.Y, Geo: a.Geo, Text: a.Text, W: a.W, H: a.H, Color: a.Color, Fill: a.Fill})
		if err != nil {
			return wireAction{}, err
		}
		return wireAction{Action: wireActionCreate, Type: wireTypeGeo, ID: a.ID, Props: props}, nil
	case CreateArrow:
		props, err := marshal(arrowProps{FromID: a.FromID, ToID: a.ToID, Label: a.Label, Color: a.Color})
		if err != nil {
			return wireAction{}, err
		}
		return wireAction{Action: wireActionCreate, Type: wireTypeArrow, ID: a.ID, Props: props}, nil
	case CreateText:
		props, err := marshal(textProps{X: a.X, Y: a.Y, Text: a.Text, Size: a.Size, Color: a.Color})
		if err != nil {
			return wireAction{}, err
		}
		return wireAction{Action: wireActionCreate, Type: wireTypeText, ID: a.ID, Props: props}, nil
	case Move:
		props, err := marshal(moveProps{X: a.X, Y: a.Y})
		if err != nil {
			return wireAction{}, err
		}
		return wireAction{Action: wireActionMove, ID: a.ID, Props: props}, nil
	case Style:
		props, err := marshal(styleProps{Color: a.Color, Fill: a.Fill})
		if err != nil {
			return wireAction{}, err
		}
		return wireAction{Action: wireActionStyle, ID: a.ID, Props: props}, nil
	case Clear:
		return wireAction{Action: wireActionClear}, nil
	default:
		return wireAction{}, fmt.Errorf("unknown action variant %T", action)
	}
}
