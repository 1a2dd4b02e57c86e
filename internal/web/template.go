package web

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/sweeney/color-sorter/internal/status"
	"github.com/sweeney/color-sorter/internal/vision"
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
	"labelOrUnknown": func(b vision.Bucket) string {
		if b == "" {
			return string(vision.Unknown)
		}
		return string(b)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Color Sorter</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.raised { color: #c00; font-weight: bold; }
.lowered { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Color Sorter</h1>

<h2>State</h2>
<table>
<tr><th>Current label</th><td id="label">{{labelOrUnknown .Label}}</td></tr>
<tr><th>Gate</th><td id="gate" class="{{if eq (printf "%s" .State) "RAISED"}}raised{{else}}lowered{{end}}">{{.State}}</td></tr>
<tr><th>Pending detections</th><td>{{.Pending}}</td></tr>
<tr><th>Pending commands</th><td>{{.CommandsPending}}</td></tr>
<tr><th>Frames</th><td>{{.FramesProcessed}} processed, {{.FramesSkipped}} skipped</td></tr>
</table>

<h2>Confirmed</h2>
<table>
{{range .Confirmed}}<tr><th>{{.Label}}</th><td>{{.Count}}</td></tr>
{{else}}<tr><td>none yet</td></tr>
{{end}}<tr><th>Raises</th><td>{{.Counts.Raises}}</td></tr>
<tr><th>Lowers</th><td>{{.Counts.Lowers}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Buffered</th><td>{{.MQTTBuffered}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Robot</th><td>{{.Config.RobotAddr}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Camera</th><td>{{.Config.Camera}}</td></tr>
<tr><th>ROI</th><td>{{.Config.ROI}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms ({{.Config.DebounceMode}})</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/history.json">History</a></p>
</body>
</html>
`

type labelCount struct {
	Label string
	Count int
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Templates cannot call Uptime() or range a map in a fixed order.
	confirmed := make([]labelCount, 0, len(snap.Counts.Confirmed))
	for b, n := range snap.Counts.Confirmed {
		confirmed = append(confirmed, labelCount{Label: string(b), Count: n})
	}
	sort.Slice(confirmed, func(i, j int) bool { return confirmed[i].Label < confirmed[j].Label })

	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Confirmed []labelCount
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Confirmed: confirmed,
	}
	indexTmpl.Execute(w, data)
}
