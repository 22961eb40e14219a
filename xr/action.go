// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

// ActionType is the value type of an action.
type ActionType int

const (
	ActionTypeBoolean ActionType = iota + 1
	ActionTypeFloat
	ActionTypeVector2f
	ActionTypePose
)

// Binding suggests an input source path for an action.
type Binding struct {
	Action Action
	Path   string
}

// ActionInstance is implemented by instances that support input actions.
type ActionInstance interface {
	CreateActionSet(name, localizedName string, priority uint32) (ActionSet, error)
	SuggestInteractionProfileBindings(profile string, bindings []Binding) error
}

// ActionSession is implemented by sessions that support input actions.
type ActionSession interface {
	AttachActionSets(sets []ActionSet) error
	SyncActions(sets []ActionSet) error
}

// ActionSet groups actions that are synchronized together.
type ActionSet interface {
	Name() string
	CreateAction(name, localizedName string, kind ActionType, subactionPaths []string) (Action, error)
	Destroy() error
}

// ActionStateVector2f is the state of a vector2 action.
type ActionStateVector2f struct {
	CurrentState         Vector2f
	ChangedSinceLastSync bool
	LastChangeTime       Time
	IsActive             bool
}

// Action is a single input action.
type Action interface {
	Name() string
	Type() ActionType

	// StateVector2f returns the state of a vector2 action. An empty
	// subactionPath aggregates every bound source.
	StateVector2f(session Session, subactionPath string) (ActionStateVector2f, error)
}
