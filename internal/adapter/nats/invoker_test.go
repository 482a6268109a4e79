package nats

import "testing"

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		locator string
		want    string
	}{
		{"/etc/switchyard/agents/dns.md", "dns"},
		{"agents/DNS_Specialist_v3.md", "dns_specialist_v3"},
		{"agents/backup.daily.md", "backup_daily"},
		{"triage", "triage"},
	}

	for _, tt := range tests {
		if got := subjectToken(tt.locator); got != tt.want {
			t.Errorf("subjectToken(%q) = %q, want %q", tt.locator, got, tt.want)
		}
	}
}
