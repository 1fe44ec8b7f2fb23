package models

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeRole(t *testing.T) {
	cases := map[string]string{
		"user":      RoleUser,
		" User ":    RoleUser,
		"assistant": RoleAssistant,
		"ai":        RoleAssistant,
		"AI":        RoleAssistant,
	}
	for in, want := range cases {
		got, ok := NormalizeRole(in)
		if !ok || got != want {
			t.Fatalf("NormalizeRole(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}

	for _, in := range []string{"", "system", "model"} {
		if _, ok := NormalizeRole(in); ok {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestMessageNormalize(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.FixedZone("X", 3600))

	msg, err := Message{UserID: " u1 ", ConversationID: "c1", Role: "ai", Text: "hello"}.Normalize(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.UserID != "u1" || msg.Role != RoleAssistant {
		t.Fatalf("unexpected normalized message %+v", msg)
	}
	if msg.Timestamp.Location() != time.UTC || msg.Timestamp.Nanosecond() != 123000000 {
		t.Fatalf("expected UTC millisecond timestamp, got %v", msg.Timestamp)
	}

	preset := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	msg, err = Message{UserID: "u1", ConversationID: "c1", Role: "user", Text: "x", Timestamp: preset}.Normalize(now)
	if err != nil || !msg.Timestamp.Equal(preset) {
		t.Fatalf("expected preset timestamp to be kept, got %v (%v)", msg.Timestamp, err)
	}

	for _, bad := range []Message{
		{ConversationID: "c1", Role: "user", Text: "x"},
		{UserID: "u1", Role: "user", Text: "x"},
		{UserID: "u1", ConversationID: "c1", Role: "system", Text: "x"},
		{UserID: "u1", ConversationID: "c1", Role: "user", Text: "   "},
	} {
		if _, err := bad.Normalize(now); !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("expected invalid message for %+v, got %v", bad, err)
		}
	}
}
