package keys

import (
	"strings"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("token %q missing prefix %q", token, TokenPrefix)
	}
	// 7-char prefix + 64 hex chars
	if len(token) != len(TokenPrefix)+64 {
		t.Errorf("token length = %d, want %d", len(token), len(TokenPrefix)+64)
	}

	other, _ := GenerateToken()
	if token == other {
		t.Error("two generated tokens are identical")
	}
}

func TestHashToken(t *testing.T) {
	token := "caelex_test"

	h1 := HashToken(token)
	h2 := HashToken(token)
	if h1 != h2 {
		t.Error("hash is not deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
	if strings.Contains(h1, token) {
		t.Error("hash leaks plaintext")
	}
}

func TestDisplayPrefix(t *testing.T) {
	token := "caelex_0123456789abcdef"
	got := DisplayPrefix(token)

	if got != "caelex_01234..." {
		t.Errorf("DisplayPrefix() = %q", got)
	}
	if len(got) >= len(token) {
		t.Error("display prefix should be shorter than the token")
	}
}

func TestHasTokenFormat(t *testing.T) {
	cases := []struct {
		token string
		want  bool
	}{
		{"caelex_abc123", true},
		{"caelex_", false},
		{"sk_live_abc123", false},
		{"", false},
		{"Bearer caelex_abc", false},
	}

	for _, tc := range cases {
		if got := HasTokenFormat(tc.token); got != tc.want {
			t.Errorf("HasTokenFormat(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}
