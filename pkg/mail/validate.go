package mail

import (
	"strings"
)

// Lint checks an outbound Message for deliverability and client
// compatibility problems that won't fail the send but will hurt it:
// spam-filter bait in the subject, HTML that major clients mangle. The
// returned issues are advisory; callers log them and send anyway.
func Lint(msg Message) []string {
	var issues []string

	subject := strings.ToLower(msg.Subject)
	for _, bait := range []string{"free!!!", "act now", "100% free", "click here"} {
		if strings.Contains(subject, bait) {
			issues = append(issues, "subject contains spam-filter trigger phrase "+bait)
		}
	}
	if strings.ToUpper(msg.Subject) == msg.Subject && len(msg.Subject) > 8 {
		issues = append(issues, "subject is all caps")
	}

	if msg.BodyHTML == "" {
		return issues
	}

	html := msg.BodyHTML
	if !strings.Contains(strings.ToLower(html), "doctype html") {
		issues = append(issues, "html body missing DOCTYPE declaration")
	}
	if strings.Contains(html, "display: flex") || strings.Contains(html, "display:flex") {
		issues = append(issues, "css flexbox is not supported in many email clients")
	}
	if strings.Contains(html, "background-image") && !strings.Contains(html, "mso-hide") {
		issues = append(issues, "background images are not rendered by Outlook")
	}
	if strings.Contains(html, "<table") &&
		!strings.Contains(html, "border-collapse:collapse") && !strings.Contains(html, "border-collapse: collapse") {
		issues = append(issues, "tables without border-collapse render with gaps in Outlook")
	}

	return issues
}
