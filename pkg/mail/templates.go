package mail

import (
	"fmt"
	"html/template"
	"strings"
)

var verificationHTML = template.Must(template.New("verification").Parse(`<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #0f766e; margin-bottom: 20px;">Welcome to Asine</h2>
    <p>Hi {{.Name}},</p>
    <p>Please verify your email to activate your Property Manager account.</p>
    <div style="text-align: center; margin: 30px 0;">
      <a href="{{.Link}}"
         style="background: #0f766e; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; display: inline-block; font-weight: bold;">
        Verify Account
      </a>
    </div>
    <p style="color: #666; font-size: 14px; margin-top: 30px;">
      <strong>Important:</strong> This verification link expires in 24 hours.
    </p>
    <p style="color: #666; font-size: 14px;">
      If you didn't create an account, please ignore this email.
    </p>
    <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
    <p style="color: #999; font-size: 12px;">
      If the button doesn't work, copy and paste this link into your browser:<br>
      <a href="{{.Link}}" style="color: #0f766e; word-break: break-all;">{{.Link}}</a>
    </p>
  </body>
</html>`))

// VerificationMessage renders the account-activation email for a property
// manager. The link should already carry the verification token.
func VerificationMessage(to, name, link, subject string) Message {
	var html strings.Builder
	_ = verificationHTML.Execute(&html, struct {
		Name string
		Link string
	}{Name: name, Link: link})

	text := fmt.Sprintf(
		"Welcome to Asine\n\nHi %s,\n\nPlease verify your email to activate your Property Manager account.\n\nVerification Link: %s\n\nThis link expires in 24 hours.\n\nIf you didn't create an account, please ignore this email.",
		name, link,
	)

	return Message{
		To:       []string{to},
		Subject:  subject,
		Body:     text,
		HTMLBody: html.String(),
	}
}
