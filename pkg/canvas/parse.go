package canvas

import (
	"regexp"
	"strings"
)

// ActionsBeginTag and ActionsEndTag delimit the action block inside a
// model reply. The model is instructed to emit exactly one such block,
// but replies may wrap it in conversational prose or truncate it.
const (
	ActionsBeginTag = "<canvas_actions>"
	ActionsEndTag   = "</canvas_actions>"
)

var actionsBlockRe = regexp.MustCompile(`(?s)<canvas_actions>(.*?)</canvas_actions>`)

// ExtractActions pulls the delimited action array out of a raw model
// reply. A missing block or a block whose content is not a valid JSON
// array yields an empty list, never an error: a malformed payload
// degrades the diagram for one turn, it must not fail the turn. No
// partial-array recovery is attempted.
func ExtractActions(raw string) []Action {
	match := actionsBlockRe.FindStringSubmatch(raw)
	if match == nil {
		return nil
	}

	actions, err := DecodeActions([]byte(strings.TrimSpace(match[1])))
	if err != nil {
		return nil
	}
	return actions
}

// EncodeActionsBlock renders actions in the delimited wire format the
// illustrator model is instructed to produce. Inverse of ExtractActions.
func EncodeActionsBlock(actions []Action) (string, error) {
	data, err := EncodeActions(actions)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(ActionsBeginTag)
	b.WriteString("\n")
	b.Write(data)
	b.WriteString("\n")
	b.WriteString(ActionsEndTag)
	return b.String(), nil
}
