package alert

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"
)

// subjectPrefix starts every alert subject line.
const subjectPrefix = "[Device Health]"

// Subject returns the notification subject for e.
//
// Example: "[Device Health] Error State: sensor-003"
func Subject(e Event) string {
	return fmt.Sprintf("%s %s: %s", subjectPrefix, e.Issue, e.DeviceID)
}

// TextBody renders the plain text notification body.
func TextBody(e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert: %s\n", e.Issue)
	fmt.Fprintf(&b, "Device: %s\n\n", e.DeviceID)
	for _, f := range bodyFields(e) {
		fmt.Fprintf(&b, "%-11s %s\n", f.Name+":", f.Value)
	}
	fmt.Fprintf(&b, "\nRaised at %s\n", e.RaisedAt.Format(time.RFC3339))
	return b.String()
}

var htmlBody = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2 style="color: #b00020;">{{.Issue}}</h2>
  <p>Device <strong>{{.DeviceID}}</strong> needs attention.</p>
  <table cellpadding="4" style="border-collapse: collapse;">
    {{- range .Fields}}
    <tr><th align="left">{{.Name}}</th><td>{{.Value}}</td></tr>
    {{- end}}
  </table>
  <p style="color: #666;">Raised at {{.RaisedAt}}</p>
</body>
</html>
`))

// HTMLBody renders the HTML notification body. Values are escaped.
func HTMLBody(e Event) (string, error) {
	data := struct {
		Issue    Issue
		DeviceID string
		Fields   []field
		RaisedAt string
	}{
		Issue:    e.Issue,
		DeviceID: e.DeviceID,
		Fields:   bodyFields(e),
		RaisedAt: e.RaisedAt.Format(time.RFC3339),
	}

	var buf bytes.Buffer
	if err := htmlBody.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering alert html: %w", err)
	}
	return buf.String(), nil
}

type field struct {
	Name  string
	Value string
}

func bodyFields(e Event) []field {
	lastError := e.Record.LastErrorString()
	if lastError == "" {
		lastError = "none"
	}
	return []field{
		{"Status", string(e.Record.Status)},
		{"Battery", strconv.FormatFloat(e.Record.Battery, 'f', -1, 64) + "%"},
		{"Sensor", strconv.FormatFloat(e.Record.Sensor, 'f', -1, 64)},
		{"Error rate", strconv.FormatFloat(e.Record.ErrorRate, 'f', -1, 64)},
		{"Last error", lastError},
	}
}
