// Package vocabulary defines the closed set of actions mailbot may apply,
// their parameters, and the text that tells the classifier about them.
// The prompt description and the response validation are both derived
// from the same tables, so what the classifier is told is exactly what
// the mapper accepts.
package vocabulary

import (
	"fmt"
	"strings"

	"github.com/nhle/mailbot/internal/model"
)

// ParamColor is the parameter name carried by color-bearing actions.
const ParamColor = "color"

// Spec describes one action kind and its required parameter, if any.
type Spec struct {
	Kind model.ActionKind

	// Param is the required parameter name, empty when the action takes
	// no parameters.
	Param string

	// Allowed lists the accepted values of Param, in prompt order.
	Allowed []string
}

// RequiresParam reports whether the action needs a parameter.
func (s Spec) RequiresParam() bool {
	return s.Param != ""
}

// Allows reports whether value is an accepted value for the spec's
// parameter. Matching is exact and case-sensitive.
func (s Spec) Allows(value string) bool {
	for _, v := range s.Allowed {
		if v == value {
			return true
		}
	}
	return false
}

var flagColors = []model.FlagColor{
	model.FlagRed,
	model.FlagOrange,
	model.FlagYellow,
	model.FlagGreen,
	model.FlagBlue,
	model.FlagPurple,
	model.FlagGray,
	model.FlagDefault,
}

var backgroundColors = []model.BackgroundColor{
	model.BackgroundNone,
	model.BackgroundGreen,
	model.BackgroundYellow,
	model.BackgroundOrange,
	model.BackgroundRed,
	model.BackgroundPurple,
	model.BackgroundBlue,
	model.BackgroundGray,
}

var specs = []Spec{
	{Kind: model.ActionMoveToTrash},
	{Kind: model.ActionMoveToArchive},
	{Kind: model.ActionMoveToJunk},
	{Kind: model.ActionMarkAsRead},
	{Kind: model.ActionMarkAsUnread},
	{Kind: model.ActionFlag, Param: ParamColor, Allowed: toStrings(flagColors)},
	{Kind: model.ActionSetBackgroundColor, Param: ParamColor, Allowed: toStrings(backgroundColors)},
}

var byName = func() map[string]Spec {
	m := make(map[string]Spec, len(specs))
	for _, s := range specs {
		m[string(s.Kind)] = s
	}
	return m
}()

var description = buildDescription()

// Specs returns a copy of every action spec in prompt order.
func Specs() []Spec {
	out := make([]Spec, len(specs))
	for i, s := range specs {
		s.Allowed = append([]string(nil), s.Allowed...)
		out[i] = s
	}
	return out
}

// Lookup finds the spec for a wire action name. The match is exact:
// "MoveToTrash" or "move_to_trash" are not found.
func Lookup(name string) (Spec, bool) {
	s, ok := byName[name]
	s.Allowed = append([]string(nil), s.Allowed...)
	return s, ok
}

// FlagColors returns the colors accepted by the flag action.
func FlagColors() []model.FlagColor {
	return append([]model.FlagColor(nil), flagColors...)
}

// BackgroundColors returns the colors accepted by setBackgroundColor.
func BackgroundColors() []model.BackgroundColor {
	return append([]model.BackgroundColor(nil), backgroundColors...)
}

// Description returns the action list shown to the classifier.
func Description() string {
	return description
}

func buildDescription() string {
	var sb strings.Builder
	sb.WriteString("The permitted actions are:")
	for _, s := range specs {
		sb.WriteString("\n- ")
		sb.WriteString(string(s.Kind))
		if s.RequiresParam() {
			fmt.Fprintf(&sb, ": requires a parameter %q which can be one of [%s]",
				s.Param, strings.Join(s.Allowed, ", "))
		}
	}
	return sb.String()
}

// Encode converts a validated action into its wire element.
func Encode(a model.Action) model.WireAction {
	el := model.WireAction{Action: string(a.Kind)}
	switch a.Kind {
	case model.ActionFlag:
		el.Parameters = map[string]string{ParamColor: string(a.FlagColor)}
	case model.ActionSetBackgroundColor:
		el.Parameters = map[string]string{ParamColor: string(a.BackgroundColor)}
	}
	return el
}

// EncodeDecision converts every action of d into wire elements. A nil
// decision encodes to nil.
func EncodeDecision(d *model.Decision) []model.WireAction {
	if d == nil {
		return nil
	}
	out := make([]model.WireAction, len(d.Actions))
	for i, a := range d.Actions {
		out[i] = Encode(a)
	}
	return out
}

// Build turns a known spec plus an already-validated parameter value into
// an Action. Callers must check Spec.Allows first.
func Build(s Spec, value string) model.Action {
	switch s.Kind {
	case model.ActionFlag:
		return model.Flag(model.FlagColor(value))
	case model.ActionSetBackgroundColor:
		return model.SetBackgroundColor(model.BackgroundColor(value))
	default:
		return model.Action{Kind: s.Kind}
	}
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
