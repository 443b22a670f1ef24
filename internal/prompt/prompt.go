// Package prompt renders a message snapshot into the instruction text sent
// to the classifier.
package prompt

import (
	"strconv"
	"strings"

	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/vocabulary"
)

const responseInstruction = `Analyze the following email and decide which one of the above actions to perform. Respond ONLY in JSON format as follows:

[{
  "action": "<action>",
  "parameters": { "key": "value", ... }
}, ...]

Make sure you match the casing and spelling of the actions and parameters exactly as shown above.`

// Build returns the classifier prompt for s. The output depends only on s;
// the body is included as-is.
func Build(s *model.MessageSnapshot) string {
	var sb strings.Builder

	sb.WriteString(vocabulary.Description())
	sb.WriteString("\n\n")
	sb.WriteString(responseInstruction)
	sb.WriteString("\n\n")

	field(&sb, "Email State", orUnknown(string(s.State)))
	field(&sb, "Encryption State", orUnknown(string(s.Encryption)))
	field(&sb, "Subject", s.Subject)
	field(&sb, "From", s.From)
	field(&sb, "To", List(s.To))
	field(&sb, "CC", List(s.CC))
	field(&sb, "BCC", List(s.BCC))
	field(&sb, "Reply-To", List(s.ReplyTo))
	field(&sb, "All Recipients", List(s.AllRecipients))
	field(&sb, "Headers", Headers(s.Headers))

	sb.WriteString("\nEmail Content:\n")
	sb.WriteString(s.Body)

	return sb.String()
}

// List renders addresses as a bracketed, quoted list: ["a@x", "b@y"].
func List(items []string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(it))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Headers renders one "Name: v1, v2" line per header, in message order.
func Headers(headers []model.Header) string {
	lines := make([]string, len(headers))
	for i, h := range headers {
		lines[i] = h.Name + ": " + strings.Join(h.Values, ", ")
	}
	return strings.Join(lines, "\n")
}

func field(sb *strings.Builder, label, value string) {
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.WriteString(value)
	sb.WriteByte('\n')
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
