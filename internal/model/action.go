package model

import "strings"

// ActionKind identifies an automated operation that can be applied to a
// message. The string value is the exact wire name used in LM responses.
type ActionKind string

const (
	ActionMoveToTrash        ActionKind = "moveToTrash"
	ActionMoveToArchive      ActionKind = "moveToArchive"
	ActionMoveToJunk         ActionKind = "moveToJunk"
	ActionMarkAsRead         ActionKind = "markAsRead"
	ActionMarkAsUnread       ActionKind = "markAsUnread"
	ActionFlag               ActionKind = "flag"
	ActionSetBackgroundColor ActionKind = "setBackgroundColor"
)

// IsMove reports whether the action relocates the message to another mailbox.
func (k ActionKind) IsMove() bool {
	switch k {
	case ActionMoveToTrash, ActionMoveToArchive, ActionMoveToJunk:
		return true
	}
	return false
}

// FlagColor is the color parameter of a flag action.
type FlagColor string

const (
	FlagRed     FlagColor = "red"
	FlagOrange  FlagColor = "orange"
	FlagYellow  FlagColor = "yellow"
	FlagGreen   FlagColor = "green"
	FlagBlue    FlagColor = "blue"
	FlagPurple  FlagColor = "purple"
	FlagGray    FlagColor = "gray"
	FlagDefault FlagColor = "defaultColor"
)

// BackgroundColor is the color parameter of a setBackgroundColor action.
// It is a separate type from FlagColor: "none" is only valid here and
// "defaultColor" is only valid for flags.
type BackgroundColor string

const (
	BackgroundNone   BackgroundColor = "none"
	BackgroundGreen  BackgroundColor = "green"
	BackgroundYellow BackgroundColor = "yellow"
	BackgroundOrange BackgroundColor = "orange"
	BackgroundRed    BackgroundColor = "red"
	BackgroundPurple BackgroundColor = "purple"
	BackgroundBlue   BackgroundColor = "blue"
	BackgroundGray   BackgroundColor = "gray"
)

// Action is a single validated action. FlagColor is set only for
// ActionFlag and BackgroundColor only for ActionSetBackgroundColor.
type Action struct {
	Kind            ActionKind
	FlagColor       FlagColor
	BackgroundColor BackgroundColor
}

// MoveToTrash returns a moveToTrash action.
func MoveToTrash() Action { return Action{Kind: ActionMoveToTrash} }

// MoveToArchive returns a moveToArchive action.
func MoveToArchive() Action { return Action{Kind: ActionMoveToArchive} }

// MoveToJunk returns a moveToJunk action.
func MoveToJunk() Action { return Action{Kind: ActionMoveToJunk} }

// MarkAsRead returns a markAsRead action.
func MarkAsRead() Action { return Action{Kind: ActionMarkAsRead} }

// MarkAsUnread returns a markAsUnread action.
func MarkAsUnread() Action { return Action{Kind: ActionMarkAsUnread} }

// Flag returns a flag action with the given color.
func Flag(c FlagColor) Action { return Action{Kind: ActionFlag, FlagColor: c} }

// SetBackgroundColor returns a setBackgroundColor action with the given color.
func SetBackgroundColor(c BackgroundColor) Action {
	return Action{Kind: ActionSetBackgroundColor, BackgroundColor: c}
}

// String renders the action the way it reads in logs, e.g. "flag(red)".
func (a Action) String() string {
	switch a.Kind {
	case ActionFlag:
		return string(a.Kind) + "(" + string(a.FlagColor) + ")"
	case ActionSetBackgroundColor:
		return string(a.Kind) + "(" + string(a.BackgroundColor) + ")"
	default:
		return string(a.Kind)
	}
}

// WireAction is the JSON form of one action as exchanged with the
// classifier and written in rule configuration:
// {"action": "<name>", "parameters": {"<key>": "<value>"}}.
type WireAction struct {
	Action     string            `json:"action" mapstructure:"action" yaml:"action"`
	Parameters map[string]string `json:"parameters,omitempty" mapstructure:"parameters" yaml:"parameters,omitempty"`
}

// Decision is an ordered list of actions to apply to one message.
// Order is application order; duplicates are kept as-is. A nil *Decision
// means "no decision" while an empty Decision means "apply nothing".
type Decision struct {
	Actions []Action
}

// NewDecision builds a decision from the given actions.
func NewDecision(actions ...Action) *Decision {
	if actions == nil {
		actions = []Action{}
	}
	return &Decision{Actions: actions}
}

// Len returns the number of actions in the decision.
func (d *Decision) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Actions)
}

// String renders the decision as a comma separated action list.
func (d *Decision) String() string {
	if d == nil {
		return "<no decision>"
	}
	parts := make([]string, len(d.Actions))
	for i, a := range d.Actions {
		parts[i] = a.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
