package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestInvalidWrapsValidation(t *testing.T) {
	err := Invalid("price must be positive, got %v", -1)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err.Error() != "price must be positive, got -1" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	wrapped := fmt.Errorf("create property: %w", err)
	if !errors.Is(wrapped, ErrValidation) {
		t.Fatalf("wrapping lost the sentinel")
	}
}

func TestDescriptorWithCapabilities(t *testing.T) {
	base := Descriptor{Name: "auctions", Capabilities: []string{"bid"}}
	extended := base.WithCapabilities("deposit", "settle")
	if len(base.Capabilities) != 1 {
		t.Fatalf("base descriptor mutated: %v", base.Capabilities)
	}
	if len(extended.Capabilities) != 3 || extended.Capabilities[2] != "settle" {
		t.Fatalf("unexpected capabilities %v", extended.Capabilities)
	}
	if same := base.WithCapabilities(); len(same.Capabilities) != 1 {
		t.Fatalf("empty append changed descriptor")
	}
}
