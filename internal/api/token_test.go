package api

import "testing"

func TestTokenSourceInitial(t *testing.T) {
	ts := NewTokenSource("tok-1")
	if ts.Token() != "tok-1" {
		t.Errorf("token = %q, want tok-1", ts.Token())
	}
}

func TestTokenSourceNotifiesSubscribers(t *testing.T) {
	ts := NewTokenSource("")

	var got []string
	ts.Subscribe(func(tok string) { got = append(got, tok) })

	ts.Set("tok-a")
	ts.Set("tok-b")

	if len(got) != 2 || got[0] != "tok-a" || got[1] != "tok-b" {
		t.Errorf("notifications = %v", got)
	}
	if ts.Token() != "tok-b" {
		t.Errorf("token = %q, want tok-b", ts.Token())
	}
}

func TestTokenSourceUnsubscribe(t *testing.T) {
	ts := NewTokenSource("")

	var calls int
	cancel := ts.Subscribe(func(string) { calls++ })

	ts.Set("tok-a")
	cancel()
	ts.Set("tok-b")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
