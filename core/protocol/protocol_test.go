package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/tailored-agentic-units/lifeline/core/protocol"
)

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		name string
		role protocol.Role
		want bool
	}{
		{"system", protocol.RoleSystem, true},
		{"user", protocol.RoleUser, true},
		{"assistant", protocol.RoleAssistant, true},
		{"tool", protocol.Role("tool"), false},
		{"empty", protocol.Role(""), false},
		{"uppercase", protocol.Role("USER"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.IsValid(); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestMessage_JSON(t *testing.T) {
	data, err := json.Marshal(protocol.NewMessage(protocol.RoleUser, "olá"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"role":"user","content":"olá"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		name      string
		system    string
		user      string
		wantRoles []protocol.Role
	}{
		{"with system", "seja gentil", "oi", []protocol.Role{protocol.RoleSystem, protocol.RoleUser}},
		{"without system", "", "oi", []protocol.Role{protocol.RoleUser}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := protocol.Prompt(tt.system, tt.user)
			if len(msgs) != len(tt.wantRoles) {
				t.Fatalf("got %d messages, want %d", len(msgs), len(tt.wantRoles))
			}
			for i, m := range msgs {
				if m.Role != tt.wantRoles[i] {
					t.Errorf("message %d: got role %q, want %q", i, m.Role, tt.wantRoles[i])
				}
			}
			if last := msgs[len(msgs)-1]; last.Content != tt.user {
				t.Errorf("got user content %q, want %q", last.Content, tt.user)
			}
		})
	}
}
