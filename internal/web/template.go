package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/m5echo/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"pressed": func(b bool) string {
		if b {
			return "pressed"
		}
		return "released"
	},
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="2">
<title>m5echo</title>
<style>
body { font: 14px/1.4 ui-monospace, monospace; background: #f4fbf4; max-width: 40em; margin: 1.5em auto; padding: 0 1em; }
h1 { color: #0033aa; border-bottom: 4px solid #0033aa; }
h2 { font-size: 1em; text-transform: uppercase; margin-top: 1.5em; }
table { width: 100%; border-spacing: 0; }
th, td { padding: 3px 6px; text-align: left; }
tr:nth-child(odd) { background: #e6f2e6; }
th { font-weight: normal; width: 16em; }
.pressed, .connected { color: #007700; font-weight: bold; }
.released { color: #777; }
.disconnected { color: #bb0000; }
</style>
</head>
<body>
<h1>m5echo</h1>

<h2>Buttons</h2>
<table>
<tr><th>A</th><td id="btn-a" class="{{pressed .Buttons.A}}">{{pressed .Buttons.A}}</td></tr>
<tr><th>B</th><td id="btn-b" class="{{pressed .Buttons.B}}">{{pressed .Buttons.B}}</td></tr>
<tr><th>C</th><td id="btn-c" class="{{pressed .Buttons.C}}">{{pressed .Buttons.C}}</td></tr>
<tr><th>Counter</th><td id="counter">{{.Counter}}</td></tr>
<tr><th>Ticks</th><td>{{.Ticks}}</td></tr>
</table>

<h2>Echo service</h2>
<table>
<tr><th>Address</th><td>{{.Config.EchoAddr}}</td></tr>
<tr><th>Active clients</th><td id="echo-active">{{.Echo.Active}}</td></tr>
<tr><th>Accepted</th><td>{{.Echo.Accepted}}</td></tr>
<tr><th>Bytes echoed</th><td>{{.Echo.Bytes}}</td></tr>
<tr><th>Failed</th><td>{{.Echo.Failed}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
{{if .Radio}}<tr><th>Radio</th><td>{{.Radio.Mode}} {{.Radio.SSID}} (channel {{.Radio.Channel}})</td></tr>
{{if .Radio.Addr}}<tr><th>IP</th><td>{{.Radio.Addr}}</td></tr>{{end}}{{end}}
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Buttons changed</th><td>{{.Counts.Changes}}</td></tr>
<tr><th>Counter ticks</th><td>{{.Counts.Actions}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Debounce</th><td>{{ms .Config.Debounce}}ms</td></tr>
<tr><th>Action interval</th><td>{{ms .Config.ActionInterval}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has an Uptime method; the template wants a field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
