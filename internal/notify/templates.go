package notify

import "html/template"

var (
	confirmedTmpl   = template.Must(template.New("confirmed").Parse(confirmedHTML))
	cancelledTmpl   = template.Must(template.New("cancelled").Parse(cancelledHTML))
	rescheduledTmpl = template.Must(template.New("rescheduled").Parse(rescheduledHTML))
)

type bookingMailData struct {
	BookerName     string
	HostName       string
	EventTypeTitle string
	StartTime      string
	EndTime        string
	Timezone       string
	UID            string
	Reason         string
	OldStartTime   string
}

const confirmedHTML = `<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Your booking is confirmed</h2>
  <p>Hi {{.BookerName}},</p>
  <p><strong>{{.EventTypeTitle}}</strong> with {{.HostName}} is booked for:</p>
  <p>{{.StartTime}} &ndash; {{.EndTime}} ({{.Timezone}})</p>
  <p>Booking reference: {{.UID}}</p>
  <p>Keep this reference if you need to cancel or reschedule.</p>
</body>
</html>`

const cancelledHTML = `<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Your booking was cancelled</h2>
  <p>Hi {{.BookerName}},</p>
  <p><strong>{{.EventTypeTitle}}</strong> with {{.HostName}} on
  {{.StartTime}} ({{.Timezone}}) has been cancelled.</p>
  {{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
  <p>You are welcome to book another time.</p>
</body>
</html>`

const rescheduledHTML = `<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Your booking was rescheduled</h2>
  <p>Hi {{.BookerName}},</p>
  <p><strong>{{.EventTypeTitle}}</strong> with {{.HostName}} has moved:</p>
  <p>Previous time: {{.OldStartTime}} ({{.Timezone}})</p>
  <p>New time: {{.StartTime}} &ndash; {{.EndTime}} ({{.Timezone}})</p>
  <p>Booking reference: {{.UID}}</p>
</body>
</html>`
