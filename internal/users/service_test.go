package users

import (
	"context"
	"testing"
)

func TestFindOrCreateCreatesThenFinds(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	ctx := context.Background()

	user, created, err := svc.FindOrCreate(ctx, "Alice@Example.com", "Alice")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create the user")
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if user.ID == "" {
		t.Fatalf("expected generated id")
	}

	again, created, err := svc.FindOrCreate(ctx, "alice@example.com", "")
	if err != nil {
		t.Fatalf("FindOrCreate second call: %v", err)
	}
	if created {
		t.Fatalf("expected second call to find the existing user")
	}
	if again.ID != user.ID {
		t.Fatalf("expected same user id, got %s and %s", user.ID, again.ID)
	}
}

func TestFindOrCreateRejectsInvalidEmail(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	ctx := context.Background()

	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, _, err := svc.FindOrCreate(ctx, email, ""); err != ErrInvalidInput {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", email, err)
		}
	}
}
