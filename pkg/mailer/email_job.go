package mailer

// EmailJob is the JSON payload placed on the RabbitMQ queue. Template is
// one of the names known to Render ("welcome", "password_changed").
type EmailJob struct {
	To       string         `json:"to"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}
