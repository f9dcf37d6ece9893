package mailer

// EmailJob is the JSON document the API puts on the email queue. A job
// either carries a rendered body (Text and/or HTML) or names a Template
// for the worker to render with Data.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Rendered reports whether the job already carries a body.
func (j EmailJob) Rendered() bool {
	return j.Text != "" || j.HTML != ""
}

// Envelope addresses the job with the given body, tagged by template.
func (j EmailJob) Envelope(subject, text, html string) Envelope {
	return Envelope{To: j.To, Subject: subject, Text: text, HTML: html, Tag: j.Template}
}
