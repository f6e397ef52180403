package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Send delivers a plain text message to every recipient through an SMTP
// relay using PLAIN auth.
func Send(server string, port int, username, password, fromName string, to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	for _, addr := range to {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid email address: %s", addr)
		}
	}

	from := username
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, username)
	}
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		from, strings.Join(to, ", "), subject, body))

	auth := smtp.PlainAuth("", username, password, server)
	addr := fmt.Sprintf("%s:%d", server, port)
	return smtp.SendMail(addr, auth, username, to, msg)
}
