package prompt

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeHistory_TruncatesToMostRecent(t *testing.T) {
	entries := []Message{
		{Role: RoleUser, Text: "1"},
		{Role: RoleAI, Text: "2"},
		{Role: RoleUser, Text: "3"},
		{Role: RoleAI, Text: "4"},
	}

	got, err := NormalizeHistory(entries, 2)
	if err != nil {
		t.Fatalf("NormalizeHistory() error = %v", err)
	}
	want := []Message{{Role: RoleUser, Text: "3"}, {Role: RoleAI, Text: "4"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeHistory() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeHistory_WithinBound(t *testing.T) {
	entries := []Message{{Role: RoleUser, Text: "hello"}}

	got, err := NormalizeHistory(entries, 20)
	if err != nil {
		t.Fatalf("NormalizeHistory() error = %v", err)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("NormalizeHistory() mismatch (-want +got):\n%s", diff)
	}

	// 戻り値の変更が入力に影響しないこと
	got[0].Text = "changed"
	if entries[0].Text != "hello" {
		t.Error("NormalizeHistory() returned a slice aliasing the input")
	}
}

func TestNormalizeHistory_UnknownRole(t *testing.T) {
	entries := []Message{{Role: RoleUser, Text: "a"}, {Role: "system", Text: "b"}}

	_, err := NormalizeHistory(entries, 20)
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("NormalizeHistory() error = %v, want ErrInvalidRole", err)
	}
}

func TestNormalizeHistory_UnknownRoleOutsideWindowStillRejected(t *testing.T) {
	entries := []Message{{Role: "bot", Text: "old"}, {Role: RoleUser, Text: "new"}}

	if _, err := NormalizeHistory(entries, 1); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("NormalizeHistory() error = %v, want ErrInvalidRole", err)
	}
}

func TestNormalizeHistory_ZeroMaxDropsHistory(t *testing.T) {
	got, err := NormalizeHistory([]Message{{Role: RoleUser, Text: "a"}}, 0)
	if err != nil {
		t.Fatalf("NormalizeHistory() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("NormalizeHistory() = %v, want empty", got)
	}
}
