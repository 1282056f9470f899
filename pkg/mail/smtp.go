// Package mail sends raw SMTP messages and validates HTML bodies for email
// client compatibility. Package mail knows nothing about jobs, queues, or
// retries — pkg/provider adapts it into the Provider port.
package mail

import (
	"fmt"
	"net/smtp"
	"net/textproto"
	"os"
	"sort"
	"strings"
)

// Config holds configuration for sending mail via SMTP.
type Config struct {
	SMTPHost string
	SMTPPort string
	Username string
	Password string
	FromName string
}

// Message is a single outbound message: exactly one of BodyText/BodyHTML
// should be set by the caller, mirroring the EmailJob invariant.
type Message struct {
	To       string
	From     string
	Subject  string
	BodyText string
	BodyHTML string
	Headers  map[string]string
}

// Send dials config.SMTPHost:SMTPPort and delivers msg via smtp.SendMail.
// It returns the raw net/smtp error unclassified; callers (pkg/provider)
// map it onto the fixed error taxonomy.
func Send(config Config, msg Message) error {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.SMTPHost)
	}

	raw := buildMessage(config, msg)
	addr := config.SMTPHost + ":" + config.SMTPPort
	return smtp.SendMail(addr, auth, msg.From, []string{msg.To}, raw)
}

func buildMessage(config Config, msg Message) []byte {
	var b strings.Builder

	from := msg.From
	if config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", config.FromName, msg.From)
	}

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")

	for _, k := range sortedKeys(msg.Headers) {
		fmt.Fprintf(&b, "%s: %s\r\n", textproto.CanonicalMIMEHeaderKey(k), msg.Headers[k])
	}

	if msg.BodyHTML != "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.BodyHTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.BodyText)
	}

	return []byte(b.String())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GmailConfig returns a pre-configured Config for Gmail SMTP. Requires
// GMAIL_USERNAME and GMAIL_APP_PASSWORD environment variables.
func GmailConfig() Config {
	return Config{
		SMTPHost: "smtp.gmail.com",
		SMTPPort: "587",
		Username: os.Getenv("GMAIL_USERNAME"),
		Password: os.Getenv("GMAIL_APP_PASSWORD"),
		FromName: "OutboxGuard",
	}
}
