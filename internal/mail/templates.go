package mail

import (
	"fmt"
	"strings"
	"text/template"
)

// ResetSubject is the subject line of password reset emails.
const ResetSubject = "Réinitialisation de votre mot de passe"

var resetBody = template.Must(template.New("reset").Parse(`Bonjour {{.Username}},

Vous avez demandé à réinitialiser votre mot de passe. Cliquez sur le lien ci-dessous :
{{.Link}}

Ce lien expire dans 1 heure.

Si vous n'avez pas fait cette demande, ignorez cet email.
`))

// ResetLink builds the frontend URL where a reset token is redeemed.
func ResetLink(frontendURL, token string) string {
	return fmt.Sprintf("%s/reset-password/%s/", strings.TrimRight(frontendURL, "/"), token)
}

// PasswordResetMessage renders the reset email for a user.
func PasswordResetMessage(to, username, link string) (Message, error) {
	var b strings.Builder
	err := resetBody.Execute(&b, struct {
		Username string
		Link     string
	}{username, link})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: ResetSubject, Body: b.String()}, nil
}
