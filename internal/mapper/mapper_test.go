package mapper_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbot/internal/mapper"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/vocabulary"
)

func TestMapAcceptsBothShapes(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "bare array", raw: `[{"action":"moveToArchive"}]`},
		{name: "actions object", raw: `{"actions":[{"action":"moveToArchive"}]}`},
		{name: "surrounding whitespace", raw: "\n  [{\"action\": \"moveToArchive\"}]\n"},
		{name: "null parameters", raw: `[{"action":"moveToArchive","parameters":null}]`},
		{name: "unused parameters", raw: `[{"action":"moveToArchive","parameters":{"color":"red"}}]`},
		{name: "extra fields", raw: `{"actions":[{"action":"moveToArchive","why":"newsletter"}],"model":"x"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, rej := mapper.Map(tc.raw)
			require.Nil(t, rej)
			require.NotNil(t, d)
			assert.Equal(t, []model.Action{model.MoveToArchive()}, d.Actions)
		})
	}
}

func TestMapEmptyArrayIsEmptyDecision(t *testing.T) {
	for _, raw := range []string{`[]`, `{"actions":[]}`} {
		d, rej := mapper.Map(raw)
		require.Nil(t, rej, raw)
		require.NotNil(t, d, "empty list is a decision, not a rejection")
		assert.Equal(t, 0, d.Len())
	}
}

func TestMapPreservesOrderAndDuplicates(t *testing.T) {
	raw := `[
		{"action":"markAsRead"},
		{"action":"flag","parameters":{"color":"purple"}},
		{"action":"setBackgroundColor","parameters":{"color":"green"}},
		{"action":"markAsRead"},
		{"action":"moveToJunk"}
	]`
	d, rej := mapper.Map(raw)
	require.Nil(t, rej)
	want := []model.Action{
		model.MarkAsRead(),
		model.Flag(model.FlagPurple),
		model.SetBackgroundColor(model.BackgroundGreen),
		model.MarkAsRead(),
		model.MoveToJunk(),
	}
	assert.Equal(t, want, d.Actions)
}

func TestMapRejections(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		reason    mapper.Reason
		index     int
		action    string
		parameter string
		value     string
	}{
		{name: "not json", raw: `not json`, reason: mapper.ReasonParseError, index: -1},
		{name: "empty", raw: ``, reason: mapper.ReasonParseError, index: -1},
		{name: "json string", raw: `"moveToArchive"`, reason: mapper.ReasonParseError, index: -1},
		{name: "null", raw: `null`, reason: mapper.ReasonParseError, index: -1},
		{name: "object without actions", raw: `{"choices":[]}`, reason: mapper.ReasonParseError, index: -1},
		{name: "null actions", raw: `{"actions":null}`, reason: mapper.ReasonParseError, index: -1},
		{name: "truncated", raw: `[{"action":"flag"`, reason: mapper.ReasonParseError, index: -1},
		{name: "trailing data", raw: `[] []`, reason: mapper.ReasonParseError, index: -1},
		{name: "missing action key", raw: `[{"parameters":{"color":"red"}}]`, reason: mapper.ReasonParseError, index: -1},
		{name: "numeric action", raw: `[{"action":3}]`, reason: mapper.ReasonParseError, index: -1},
		{name: "numeric parameter", raw: `[{"action":"flag","parameters":{"color":1}}]`, reason: mapper.ReasonParseError, index: -1},
		{name: "null element", raw: `[null]`, reason: mapper.ReasonParseError, index: -1},
		{
			name: "unknown action", raw: `[{"action":"delete"}]`,
			reason: mapper.ReasonUnknownAction, index: 0, action: "delete",
		},
		{
			name: "wrong casing", raw: `[{"action":"MoveToArchive"}]`,
			reason: mapper.ReasonUnknownAction, index: 0, action: "MoveToArchive",
		},
		{
			name: "empty action", raw: `[{"action":""}]`,
			reason: mapper.ReasonUnknownAction, index: 0,
		},
		{
			name: "flag without parameters", raw: `[{"action":"flag"}]`,
			reason: mapper.ReasonMissingParameter, index: 0, action: "flag", parameter: "color",
		},
		{
			name: "flag with other parameter", raw: `[{"action":"flag","parameters":{"colour":"red"}}]`,
			reason: mapper.ReasonMissingParameter, index: 0, action: "flag", parameter: "color",
		},
		{
			name: "flag teal", raw: `[{"action":"flag","parameters":{"color":"teal"}}]`,
			reason: mapper.ReasonInvalidParameter, index: 0, action: "flag", parameter: "color", value: "teal",
		},
		{
			name: "flag none", raw: `[{"action":"flag","parameters":{"color":"none"}}]`,
			reason: mapper.ReasonInvalidParameter, index: 0, action: "flag", parameter: "color", value: "none",
		},
		{
			name: "flag uppercase", raw: `[{"action":"flag","parameters":{"color":"Red"}}]`,
			reason: mapper.ReasonInvalidParameter, index: 0, action: "flag", parameter: "color", value: "Red",
		},
		{
			name: "background defaultColor", raw: `[{"action":"setBackgroundColor","parameters":{"color":"defaultColor"}}]`,
			reason: mapper.ReasonInvalidParameter, index: 0, action: "setBackgroundColor", parameter: "color", value: "defaultColor",
		},
		{
			name: "background missing", raw: `[{"action":"setBackgroundColor","parameters":{}}]`,
			reason: mapper.ReasonMissingParameter, index: 0, action: "setBackgroundColor", parameter: "color",
		},
		{
			name: "bad element after valid ones",
			raw:  `[{"action":"markAsRead"},{"action":"flag","parameters":{"color":"red"}},{"action":"explode"}]`,
			reason: mapper.ReasonUnknownAction, index: 2, action: "explode",
		},
		{
			name: "bad color after valid ones",
			raw:  `{"actions":[{"action":"moveToArchive"},{"action":"setBackgroundColor","parameters":{"color":"teal"}}]}`,
			reason: mapper.ReasonInvalidParameter, index: 1, action: "setBackgroundColor", parameter: "color", value: "teal",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, rej := mapper.Map(tc.raw)
			assert.Nil(t, d, "rejected responses must not yield a decision")
			require.NotNil(t, rej)
			assert.Equal(t, tc.reason, rej.Reason)
			assert.Equal(t, tc.index, rej.Index)
			assert.Equal(t, tc.action, rej.Action)
			assert.Equal(t, tc.parameter, rej.Parameter)
			assert.Equal(t, tc.value, rej.Value)
			assert.NotEmpty(t, rej.Error())
			if tc.reason == mapper.ReasonParseError {
				assert.Error(t, rej.Unwrap())
			}
		})
	}
}

func TestMapRoundTrip(t *testing.T) {
	var all []model.Action
	for _, s := range vocabulary.Specs() {
		if !s.RequiresParam() {
			all = append(all, model.Action{Kind: s.Kind})
			continue
		}
		for _, v := range s.Allowed {
			all = append(all, vocabulary.Build(s, v))
		}
	}
	want := model.NewDecision(all...)

	for _, wrap := range []bool{false, true} {
		var payload any = vocabulary.EncodeDecision(want)
		if wrap {
			payload = map[string]any{"actions": payload}
		}
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		got, rej := mapper.Map(string(data))
		require.Nil(t, rej)
		assert.Equal(t, want, got)
	}
}

func TestRejectionIsError(t *testing.T) {
	_, rej := mapper.Map(`[{"action":"nope"}]`)
	require.NotNil(t, rej)
	var err error = rej
	assert.True(t, mapper.IsRejection(err))
	assert.Contains(t, err.Error(), `unknown action "nope"`)
}
