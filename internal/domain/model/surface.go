package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SurfaceID is the opaque identifier every display surface registers under.
type SurfaceID uuid.UUID

func NewSurfaceID() SurfaceID { return SurfaceID(uuid.New()) }

func ParseSurfaceID(s string) (SurfaceID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return SurfaceID{}, fmt.Errorf("invalid surface id %q: %w", s, err)
	}
	return SurfaceID(id), nil
}

func (id SurfaceID) String() string { return uuid.UUID(id).String() }
func (id SurfaceID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

func (id SurfaceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SurfaceID) UnmarshalText(text []byte) error {
	parsed, err := ParseSurfaceID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Target addresses an event to one surface, either by its registered id or
// by its configured logical name. The zero value broadcasts to all surfaces.
type Target struct {
	surface SurfaceID
	name    string
}

func TargetSurface(id SurfaceID) Target { return Target{surface: id} }
func TargetName(name string) Target     { return Target{name: name} }

func (t Target) IsZero() bool       { return t.surface.IsZero() && t.name == "" }
func (t Target) Surface() SurfaceID { return t.surface }
func (t Target) Name() string       { return t.name }

// Matches reports whether a surface with the given identity is addressed.
// A broadcast target matches every surface.
func (t Target) Matches(id SurfaceID, name string) bool {
	if t.IsZero() {
		return true
	}
	if !t.surface.IsZero() && t.surface == id {
		return true
	}
	return t.name != "" && t.name == name
}

func (t Target) String() string {
	switch {
	case !t.surface.IsZero():
		return "surface:" + t.surface.String()
	case t.name != "":
		return "name:" + t.name
	default:
		return "broadcast"
	}
}

type targetJSON struct {
	SurfaceID *SurfaceID `json:"surface_id,omitempty"`
	Name      string     `json:"name,omitempty"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	var out targetJSON
	if !t.surface.IsZero() {
		id := t.surface
		out.SurfaceID = &id
	}
	out.Name = t.name
	return json.Marshal(out)
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var in targetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = Target{name: in.Name}
	if in.SurfaceID != nil {
		t.surface = *in.SurfaceID
	}
	return nil
}

// DialogState is the renderer-facing view of a surface's cause dialog.
type DialogState struct {
	Visible           bool     `json:"visible"`
	Selected          *Wrapper `json:"selected,omitempty"`
	Description       string   `json:"description,omitempty"`
	RequestInProgress bool     `json:"request_in_progress"`
	TicketError       string   `json:"ticket_error,omitempty"`
}

// Frame is a full snapshot of one surface, pushed to renderers after every
// state change. Seq grows monotonically per surface.
type Frame struct {
	SurfaceID SurfaceID   `json:"surface_id"`
	Name      string      `json:"name,omitempty"`
	Seq       uint64      `json:"seq"`
	Messages  []Wrapper   `json:"messages"`
	Dialog    DialogState `json:"dialog"`
}
