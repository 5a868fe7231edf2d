// Package mail sends account activation links over SMTP.
package mail

import (
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Sender delivers an activation link to an address. Implementations must be
// safe for fire-and-forget use: registration never waits on, or rolls back
// for, mail delivery.
type Sender interface {
	SendActivationLink(email, activationCode string)
}

// SMTPSender sends activation mail through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	appURL string
	log    *slog.Logger
}

// NewSMTPSender returns a Sender using the given relay. log may be nil; then
// slog.Default is used.
func NewSMTPSender(host string, port int, user, pass, from, appURL string, log *slog.Logger) *SMTPSender {
	if log == nil {
		log = slog.Default()
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
		appURL: appURL,
		log:    log,
	}
}

// SendActivationLink delivers the activation mail in a background goroutine.
// Failures are logged and never surfaced to the caller.
func (s *SMTPSender) SendActivationLink(email, activationCode string) {
	link := fmt.Sprintf("%s/auth/activate/%s", s.appURL, activationCode)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Activate your City Report account")
	m.SetBody("text/html", fmt.Sprintf(
		`<h1>Welcome to City Report!</h1>
		<p>Please activate your account by clicking the link below:</p>
		<a href="%s">Activate account</a>`, link))

	go func() {
		if err := s.dialer.DialAndSend(m); err != nil {
			s.log.Warn("mail: could not send activation link",
				slog.String("to", email),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// NoopSender discards activation mail. Used when SMTP is not configured and in tests.
type NoopSender struct{}

func (NoopSender) SendActivationLink(string, string) {}
