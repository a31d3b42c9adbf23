package action

import (
	"encoding/json"
	"fmt"
)

// Marshaler is implemented by every concrete action so the plan
// serializer can round-trip it through the Registry without a type
// switch at the call site (spec.md §4.C: "Serializers see composites
// as kind + parameters + children[]").
type Marshaler interface {
	Action
	// MarshalFields returns the kind-specific parameters (not the
	// shared Base bookkeeping, which Envelope carries separately).
	MarshalFields() (json.RawMessage, error)
}

// Unmarshaler is implemented by a zero-value action constructed by the
// Registry so it can populate itself from the fields captured by
// MarshalFields, plus the shared state that Envelope restores directly.
type Unmarshaler interface {
	Action
	UnmarshalFields(data json.RawMessage) error
}

// Constructor builds a zero-value instance of a kind, ready for
// UnmarshalFields. Concrete action packages register one per kind in
// their init().
type Constructor func() Unmarshaler

var registry = map[Kind]Constructor{}

// Register adds a kind constructor to the global registry. Called from
// package init() in internal/action/base and internal/action/composite.
// Panics on duplicate registration, since that is always a programming
// error (two kinds sharing a tag would silently corrupt round-trips).
func Register(kind Kind, ctor Constructor) {
	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("action: duplicate registration for kind %q", kind))
	}
	registry[kind] = ctor
}

// New constructs a zero-value action for kind, or an error if kind is
// unknown to this binary (e.g. a receipt written by a newer version
// with an action kind this build doesn't carry).
func New(kind Kind) (Unmarshaler, error) {
	ctor, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("action: unknown kind %q", kind)
	}
	return ctor(), nil
}

// Envelope is the on-the-wire shape of one action: its kind, its
// shared lifecycle state, its kind-specific fields, and (for
// composites) its already-serialized children. This is what
// internal/plan marshals the top-level action array as.
type Envelope struct {
	Kind     Kind              `json:"kind"`
	State    State             `json:"state"`
	Fields   json.RawMessage   `json:"fields,omitempty"`
	Children []Envelope        `json:"children,omitempty"`
}

// Marshal converts a live Action tree into its Envelope form.
func Marshal(a Action) (Envelope, error) {
	env := Envelope{Kind: a.Kind(), State: a.State()}
	if m, ok := a.(Marshaler); ok {
		fields, err := m.MarshalFields()
		if err != nil {
			return Envelope{}, fmt.Errorf("action %s: marshal fields: %w", a.Kind(), err)
		}
		env.Fields = fields
	}
	for _, child := range a.Children() {
		childEnv, err := Marshal(child)
		if err != nil {
			return Envelope{}, err
		}
		env.Children = append(env.Children, childEnv)
	}
	return env, nil
}

// Unmarshal reconstructs a live Action tree from an Envelope, using the
// Registry to pick the right constructor per kind. Composite actions
// must implement RestoreChildren to accept their rehydrated children;
// see internal/action/composite.
func Unmarshal(env Envelope) (Action, error) {
	inst, err := New(env.Kind)
	if err != nil {
		return nil, err
	}
	if len(env.Fields) > 0 {
		if err := inst.UnmarshalFields(env.Fields); err != nil {
			return nil, fmt.Errorf("action %s: unmarshal fields: %w", env.Kind, err)
		}
	}
	if len(env.Children) > 0 {
		restorer, ok := inst.(ChildRestorer)
		if !ok {
			return nil, fmt.Errorf("action %s: has children in envelope but does not implement ChildRestorer", env.Kind)
		}
		children := make([]Action, 0, len(env.Children))
		for _, childEnv := range env.Children {
			child, err := Unmarshal(childEnv)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		restorer.RestoreChildren(children)
	}
	if restorer, ok := inst.(StateRestorer); ok {
		restorer.RestoreState(env.State)
	}
	return inst, nil
}

// ChildRestorer is implemented by composite actions to accept
// rehydrated children during Unmarshal.
type ChildRestorer interface {
	RestoreChildren(children []Action)
}

// StateRestorer lets Unmarshal set the lifecycle state directly,
// bypassing the normal Mark* transition guards, since a receipt or
// plan file already recorded a state that was legally reached.
type StateRestorer interface {
	RestoreState(s State)
}

// RestoreState implements StateRestorer for Base (and therefore for
// every embedder, including Composite).
func (b *Base) RestoreState(s State) { b.state = s }
