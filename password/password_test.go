package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func fastArgon2(t *testing.T) *Argon2 {
	t.Helper()
	h, err := NewArgon2(Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func fastBcrypt(t *testing.T) *Bcrypt {
	t.Helper()
	h, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	return h
}

func TestBcryptHashAndVerify(t *testing.T) {
	h := fastBcrypt(t)
	hash, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if ForHash(hash) != "bcrypt" {
		t.Fatalf("unexpected bcrypt prefix: %s", hash)
	}

	ok, err := h.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong-password", hash)
	if err != nil || ok {
		t.Fatalf("expected wrong password to fail without error: ok=%v err=%v", ok, err)
	}
}

func TestBcryptRejectsEmptyAndLongInput(t *testing.T) {
	h := fastBcrypt(t)
	if _, err := h.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestBcryptNeedsUpgrade(t *testing.T) {
	weak := fastBcrypt(t)
	hash, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	strong, err := NewBcrypt(bcrypt.MinCost + 1)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	if up, err := strong.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("expected upgrade for cheaper hash: up=%v err=%v", up, err)
	}
	if up, err := weak.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("expected no upgrade at same cost: up=%v err=%v", up, err)
	}
}

func TestNewBcryptValidatesCost(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected out of range cost to be rejected")
	}
	h, err := NewBcrypt(0)
	if err != nil || h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %+v err=%v", h, err)
	}
}

func TestArgon2HashAndVerify(t *testing.T) {
	h := fastArgon2(t)
	hash, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	ok, err := h.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong-password", hash)
	if err != nil || ok {
		t.Fatalf("expected wrong password to fail: ok=%v err=%v", ok, err)
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	old := fastArgon2(t)
	hash, err := old.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	cfg := DefaultArgon2Config()
	cfg.Memory = 16 * 1024
	newer, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if up, err := newer.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("expected upgrade for weaker parameters: up=%v err=%v", up, err)
	}
	if up, err := old.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("expected no upgrade for current parameters: up=%v err=%v", up, err)
	}
}

func TestArgon2RejectsMalformedHashes(t *testing.T) {
	h := fastArgon2(t)
	hash, err := h.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	bad := []string{
		"not-a-phc-hash",
		strings.Replace(hash, "$v=19$", "$v=18$", 1),
		strings.Replace(hash, "m=8192", "m=10", 1),
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$abc",
	}
	for _, enc := range bad {
		if _, err := h.Verify("version-test", enc); err == nil {
			t.Fatalf("expected %q to be rejected", enc)
		}
	}
}

func TestArgon2MaxPasswordBytes(t *testing.T) {
	cfg := Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32, MaxPasswordBytes: 64}
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	exact := strings.Repeat("b", 64)
	hash, err := h.Hash(exact)
	if err != nil {
		t.Fatalf("expected exactly-max password to be accepted: %v", err)
	}
	if ok, err := h.Verify(exact, hash); err != nil || !ok {
		t.Fatalf("Verify failed for max-length password: ok=%v err=%v", ok, err)
	}
}

func TestSetRoutesByFormat(t *testing.T) {
	bc := fastBcrypt(t)
	ar := fastArgon2(t)
	set := Set{Primary: bc, Bcrypt: bc, Argon2: ar}

	legacy, err := ar.Hash("shared-password")
	if err != nil {
		t.Fatalf("argon2 hash: %v", err)
	}
	ok, err := set.Verify("shared-password", legacy)
	if err != nil || !ok {
		t.Fatalf("expected argon2 hash to verify through set: ok=%v err=%v", ok, err)
	}
	if up, err := set.NeedsUpgrade(legacy); err != nil || !up {
		t.Fatalf("expected non-primary algorithm to need upgrade: up=%v err=%v", up, err)
	}

	current, err := set.Hash("shared-password")
	if err != nil {
		t.Fatalf("set hash: %v", err)
	}
	if ForHash(current) != "bcrypt" {
		t.Fatalf("expected primary bcrypt hash, got %s", current)
	}
	if _, err := set.Verify("x", "plaintext"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
