package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer delivers verification and reset mail over SMTP.
type Mailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func New(host string, port int, user, password, from, fromName string) *Mailer {
	return &Mailer{
		dialer:   gomail.NewDialer(host, port, user, password),
		from:     from,
		fromName: fromName,
	}
}

func (m *Mailer) SendOtp(email, code string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Verify your email")

	body := fmt.Sprintf(`
		<h3>Verify your email</h3>
		<p>Your OTP is: <strong>%s</strong></p>
		<p>If you did not request this code, you can ignore this email.</p>
	`, code)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send OTP email: %w", err)
	}
	return nil
}

func (m *Mailer) SendPasswordReset(email, resetToken string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Reset your password")

	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your account.</p>
		<p>Use the following token to reset your password: <strong>%s</strong></p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, resetToken)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}
