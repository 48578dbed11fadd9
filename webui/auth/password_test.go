package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// Low cost keeps the bcrypt tests fast.
const testCost = bcrypt.MinCost

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPasswordWithCost("correct horse battery staple", testCost)
	if err != nil {
		t.Fatalf("HashPasswordWithCost: %v", err)
	}

	if err := VerifyPassword("correct horse battery staple", hash); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := VerifyPassword("wrong password", hash); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("wrong password err = %v, want ErrPasswordMismatch", err)
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("err = %v, want ErrEmptyPassword", err)
	}
	if err := VerifyPassword("", "$2a$10$whatever"); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("verify empty err = %v, want ErrEmptyPassword", err)
	}
}

func TestHashPasswordRejectsBadCost(t *testing.T) {
	if _, err := HashPasswordWithCost("pw", bcrypt.MaxCost+1); err == nil {
		t.Error("cost above max accepted")
	}
}

func TestNeedsRehash(t *testing.T) {
	hash, err := HashPasswordWithCost("pw", testCost)
	if err != nil {
		t.Fatalf("HashPasswordWithCost: %v", err)
	}

	if !NeedsRehash(hash, testCost+1) {
		t.Error("low-cost hash not flagged for rehash")
	}
	if NeedsRehash(hash, testCost) {
		t.Error("hash at target cost flagged for rehash")
	}
	if !NeedsRehash("not a hash", testCost) {
		t.Error("malformed hash not flagged for rehash")
	}
}

func TestValidateHashStrength(t *testing.T) {
	weak, err := HashPasswordWithCost("pw", testCost)
	if err != nil {
		t.Fatalf("HashPasswordWithCost: %v", err)
	}
	if err := ValidateHashStrength(weak); !errors.Is(err, ErrWeakHash) {
		t.Errorf("err = %v, want ErrWeakHash", err)
	}
	if err := ValidateHashStrength("garbage"); err == nil {
		t.Error("malformed hash validated")
	}
}

func TestIsValidHash(t *testing.T) {
	hash, _ := HashPasswordWithCost("pw", testCost)
	if !IsValidHash(hash) {
		t.Error("real hash reported invalid")
	}
	if IsValidHash("nope") {
		t.Error("garbage reported valid")
	}
}
