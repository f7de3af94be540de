package points

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultAwardMessage is used by NPCs without their own template.
const DefaultAwardMessage = "I'm awarding you {{ .Points }} points for engaging with me!"

var templateFuncs = sprig.TxtFuncMap()

// MessageData is the data available to award message templates.
type MessageData struct {
	Points   int64
	NewTotal int64
	Reason   string
	Player   string
	NPC      string
}

// RenderAwardMessage expands an award template. An empty template falls
// back to DefaultAwardMessage.
func RenderAwardMessage(tmplStr string, data MessageData) (string, error) {
	if strings.TrimSpace(tmplStr) == "" {
		tmplStr = DefaultAwardMessage
	}
	tmpl, err := template.New("award").Funcs(templateFuncs).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing award template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing award template: %w", err)
	}
	return buf.String(), nil
}
