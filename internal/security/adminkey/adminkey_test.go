package adminkey

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	t.Parallel()
	// Parámetros chicos para que el test no pese.
	p := Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

	phc, err := Hash(p, "super-secret-key")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %q", phc)
	}

	if !Verify("super-secret-key", phc) {
		t.Fatal("Verify rejected the right key")
	}
	if Verify("wrong-key", phc) {
		t.Fatal("Verify accepted a wrong key")
	}
}

func TestHash_EmptyKey(t *testing.T) {
	t.Parallel()
	if _, err := Hash(Default, ""); err == nil {
		t.Fatal("Hash should reject an empty key")
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	t.Parallel()
	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=1$notbase64",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$ZGs",
	}
	for _, phc := range cases {
		if Verify("key", phc) {
			t.Fatalf("Verify accepted malformed PHC %q", phc)
		}
	}
}

func TestHash_SaltedDifferently(t *testing.T) {
	t.Parallel()
	p := Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}
	a, err := Hash(p, "same-key")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash(p, "same-key")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same key share a salt")
	}
	if !Verify("same-key", a) || !Verify("same-key", b) {
		t.Fatal("Verify failed for one of the salted hashes")
	}
}
