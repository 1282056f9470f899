package mail

import (
	"strings"
	"testing"
)

func TestLintFlagsSpamBaitSubjects(t *testing.T) {
	issues := Lint(Message{Subject: "ACT NOW and save", BodyHTML: ""})
	if len(issues) != 1 {
		t.Fatalf("issues = %v, want exactly the spam-trigger finding", issues)
	}
	if !strings.Contains(issues[0], "act now") {
		t.Fatalf("issue = %q", issues[0])
	}
}

func TestLintFlagsAllCapsSubject(t *testing.T) {
	issues := Lint(Message{Subject: "QUARTERLY REPORT READY"})
	found := false
	for _, i := range issues {
		if strings.Contains(i, "all caps") {
			found = true
		}
	}
	if !found {
		t.Fatalf("issues = %v, want an all-caps finding", issues)
	}
}

func TestLintHTMLCompatibility(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"flexbox", "<!doctype html><div style=\"display: flex\"></div>", "flexbox"},
		{"background image", "<!doctype html><div style=\"background-image:url(x)\"></div>", "Outlook"},
		{"table without collapse", "<!doctype html><table><tr></tr></table>", "border-collapse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Lint(Message{Subject: "hello", BodyHTML: tt.html})
			found := false
			for _, i := range issues {
				if strings.Contains(i, tt.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("issues = %v, want one containing %q", issues, tt.want)
			}
		})
	}
}

func TestLintCleanMessage(t *testing.T) {
	html := "<!doctype html><table style=\"border-collapse:collapse\"><tr></tr></table>"
	if issues := Lint(Message{Subject: "Weekly digest", BodyHTML: html}); len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
}
