package core

import (
	"errors"
	"testing"
)

type fixedKey string

func (k fixedKey) Key() (string, error) { return string(k), nil }
func (k fixedKey) IsPrivate() bool      { return false }

func TestRegistry_DefaultStrategy(t *testing.T) {
	r := NewRegistry()
	ref, _ := NewEntityRef("User", 1)

	cv, err := r.Create(&FieldContext{Parent: ref, Field: "name", Cacheable: true})
	if err != nil {
		t.Fatalf("default strategy failed: %v", err)
	}

	key, err := cv.Key()
	if err != nil {
		t.Fatalf("key derivation failed: %v", err)
	}
	if key != "User:1:name" {
		t.Errorf("expected User:1:name, got %s", key)
	}
}

func TestRegistry_DefaultStrategy_MissingIdentity(t *testing.T) {
	r := NewRegistry()

	// A typed parent without identity cannot be keyed safely
	_, err := r.Create(&FieldContext{
		Parent: EntityRef{Type: "User"},
		Field:  "name",
	})
	if !errors.Is(err, ErrMissingIdentity) {
		t.Errorf("expected ErrMissingIdentity, got %v", err)
	}
}

func TestRegistry_SetFactoryLastWins(t *testing.T) {
	r := NewRegistry()

	r.SetFactory(func(fc *FieldContext) (KeyComputer, error) {
		return fixedKey("first"), nil
	})
	r.SetFactory(func(fc *FieldContext) (KeyComputer, error) {
		return fixedKey("second"), nil
	})

	cv, err := r.Create(&FieldContext{Field: "x"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	key, _ := cv.Key()
	if key != "second" {
		t.Errorf("expected last-installed factory to win, got %s", key)
	}
}

func TestRegistry_WithFactoryRestores(t *testing.T) {
	r := NewRegistry()
	ref, _ := NewEntityRef("User", 1)
	fc := &FieldContext{Parent: ref, Field: "name"}

	r.WithFactory(func(fc *FieldContext) (KeyComputer, error) {
		return fixedKey("override"), nil
	}, func() {
		cv, _ := r.Create(fc)
		key, _ := cv.Key()
		if key != "override" {
			t.Errorf("expected override inside scope, got %s", key)
		}
	})

	cv, err := r.Create(fc)
	if err != nil {
		t.Fatalf("create failed after restore: %v", err)
	}
	key, _ := cv.Key()
	if key != "User:1:name" {
		t.Errorf("expected default strategy after restore, got %s", key)
	}
}

func TestRegistry_FactoryErrorPropagates(t *testing.T) {
	r := NewRegistry()
	wantErr := errors.New("strategy exploded")

	r.SetFactory(func(fc *FieldContext) (KeyComputer, error) {
		return nil, wantErr
	})

	if _, err := r.Create(&FieldContext{Field: "x"}); !errors.Is(err, wantErr) {
		t.Errorf("expected factory error to propagate, got %v", err)
	}
}
