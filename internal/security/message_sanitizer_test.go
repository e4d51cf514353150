package security

import (
	"strings"
	"testing"
)

func TestMessageSanitizer_SanitizeMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"プレーンテキスト", "Invalid email or password", "Invalid email or password"},
		{"アポストロフィ", "Can't find that user", "Can't find that user"},
		{"アンパサンド", "Terms & conditions", "Terms & conditions"},
		{"強調タグ", "<b>Session</b> expired", "Session expired"},
		{"リンク", `Please <a href="https://zybooks.com/reset">reset</a> your password`, "Please reset your password"},
		{"script", `<script>alert(1)</script>Not authorized`, "Not authorized"},
		{"イベント属性", `<img src=x onerror="alert(1)">Bad token`, "Bad token"},
		{"改行と空白", "  line one\n\tline two  ", "line one line two"},
		{"空", "", ""},
	}

	s := NewMessageSanitizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeMessage(tt.in); got != tt.want {
				t.Errorf("SanitizeMessage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMessageSanitizer_NoTagsSurvive(t *testing.T) {
	payloads := []string{
		`<iframe src="https://evil.example"></iframe>oops`,
		`<style>body{display:none}</style>oops`,
		`<div onclick="steal()">oops</div>`,
		`<svg onload=alert(1)>oops`,
	}

	s := NewMessageSanitizer()
	for _, p := range payloads {
		got := s.SanitizeMessage(p)
		if strings.Contains(got, "<") || strings.Contains(got, "onload") || strings.Contains(got, "onclick") {
			t.Errorf("SanitizeMessage(%q) = %q, markup survived", p, got)
		}
		if !strings.Contains(got, "oops") {
			t.Errorf("SanitizeMessage(%q) = %q, text was lost", p, got)
		}
	}
}
