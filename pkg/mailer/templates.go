package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

const welcomeHTML = `<html><body>
<h2>Welcome to {{.AppName}}, {{.Name}}!</h2>
<p>Your account is ready. Sign in with your username <b>{{.Name}}</b> and
start sharing recipes.</p>
</body></html>`

const passwordChangedHTML = `<html><body>
<h2>Your password was changed</h2>
<p>Hi {{.Name}}, the password for your {{.AppName}} account was just
changed. If this wasn't you, contact support right away.</p>
</body></html>`

var templates = map[string]*template.Template{
	"welcome":          template.Must(template.New("welcome").Parse(welcomeHTML)),
	"password_changed": template.Must(template.New("password_changed").Parse(passwordChangedHTML)),
}

var subjects = map[string]string{
	"welcome":          "Welcome to Savorly",
	"password_changed": "Your Savorly password was changed",
}

// Render returns subject and HTML body for a known template name.
func Render(name string, data map[string]any) (subject, html string, err error) {
	tpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return subjects[name], buf.String(), nil
}
