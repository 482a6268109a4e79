package service

import (
	"reflect"
	"testing"
)

func TestParseHandoffBlock(t *testing.T) {
	p := NewBlockParser()

	text := `Checked the mail flow, the SPF record is fine.

To: security
Reason: firewall rules need review
Context:
- finding: open port 3389
- hosts: ["gw1.example.com", "gw2.example.com"]
`

	decl := p.Parse(text)
	if decl == nil {
		t.Fatal("Parse returned nil, want declaration")
	}
	if decl.ToAgent != "security" {
		t.Errorf("to_agent = %q, want security", decl.ToAgent)
	}
	if decl.Reason != "firewall rules need review" {
		t.Errorf("reason = %q", decl.Reason)
	}
	if got := decl.Context["finding"]; got != "open port 3389" {
		t.Errorf("finding = %v", got)
	}
	hosts, ok := decl.Context["hosts"].([]any)
	if !ok || !reflect.DeepEqual(hosts, []any{"gw1.example.com", "gw2.example.com"}) {
		t.Errorf("hosts = %v, want decoded JSON list", decl.Context["hosts"])
	}
}

func TestParseNoBlock(t *testing.T) {
	p := NewBlockParser()

	tests := []struct {
		name string
		text string
	}{
		{"plain output", "All records verified, nothing further to do."},
		{"to without reason", "To: security\nthe rest is prose"},
		{"empty", ""},
		{"reason without to", "Reason: because\nsomething else"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if decl := p.Parse(tt.text); decl != nil {
				t.Errorf("Parse(%q) = %+v, want nil", tt.text, decl)
			}
		})
	}
}

func TestParseWithoutContext(t *testing.T) {
	p := NewBlockParser()

	decl := p.Parse("To: Network\nReason: VPN tunnel is down")
	if decl == nil {
		t.Fatal("Parse returned nil")
	}
	if decl.ToAgent != "network" {
		t.Errorf("to_agent = %q, want lowercased network", decl.ToAgent)
	}
	if decl.Context != nil {
		t.Errorf("context = %v, want nil", decl.Context)
	}
}

func TestParseContinuationLines(t *testing.T) {
	p := NewBlockParser()

	text := "To: azure\n" +
		"Reason: tenant misconfiguration\n" +
		"Context:\n" +
		"- summary: conditional access policy blocks\n" +
		"    the break-glass account as well\n" +
		"- severity: high\n"

	decl := p.Parse(text)
	if decl == nil {
		t.Fatal("Parse returned nil")
	}
	want := "conditional access policy blocks the break-glass account as well"
	if got := decl.Context["summary"]; got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
	if got := decl.Context["severity"]; got != "high" {
		t.Errorf("severity = %v, want high", got)
	}
}

func TestParseMalformedJSONValueKeptAsString(t *testing.T) {
	p := NewBlockParser()

	text := "To: dns\nReason: records\nContext:\n- hosts: [not, valid json\n"
	decl := p.Parse(text)
	if decl == nil {
		t.Fatal("Parse returned nil")
	}
	if got, ok := decl.Context["hosts"].(string); !ok || got != "[not, valid json" {
		t.Errorf("hosts = %v (%T), want raw string", decl.Context["hosts"], decl.Context["hosts"])
	}
}
