package player

import (
	"errors"
	"testing"
)

func TestSimpleListNames(t *testing.T) {
	sl := SimpleList{}
	for _, name := range []string{"bedroom", "attic", "kitchen"} {
		if err := sl.Set(name, New(name, newFakePort(), Config{})); err != nil {
			t.Fatalf("error setting player: %v", err)
		}
	}

	names, err := sl.PlayerNames()
	if err != nil {
		t.Fatalf("error listing players: %v", err)
	}
	expected := []string{"attic", "bedroom", "kitchen"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d names, got %v", len(expected), names)
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("expected %q at %d, got %q", name, i, names[i])
		}
	}
}

func TestSimpleListLookup(t *testing.T) {
	sl := SimpleList{}
	pl := New("attic", newFakePort(), Config{})
	if err := sl.Set("attic", pl); err != nil {
		t.Fatalf("error setting player: %v", err)
	}

	got, err := sl.PlayerByName("attic")
	if err != nil {
		t.Fatalf("error looking up player: %v", err)
	}
	if got != pl {
		t.Fatalf("unexpected player: %v", got)
	}

	if _, err := sl.PlayerByName("basement"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestSimpleListNameValidation(t *testing.T) {
	sl := SimpleList{}
	if err := sl.Set("no spaces allowed", New("x", newFakePort(), Config{})); err == nil {
		t.Fatalf("expected an error for an invalid name")
	}
}
