package digest

import (
	"crypto/rand"
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"
)

func TestFileIsStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essence.bin")
	if err := os.WriteFile(path, []byte("some essence bytes, repeated a bit more"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d1, err := File(path, 0, nil)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	d2, err := File(path, 16, nil)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	if d1 != d2 {
		t.Errorf("digest not stable across buffer sizes: %q vs %q", d1, d2)
	}
}

func TestFileProgressCancels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essence.bin")
	if err := os.WriteFile(path, make([]byte, 1<<20), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := File(path, 4096, func(float64) bool { return false })
	if err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestBytesMatchesKnownDigest(t *testing.T) {
	// SHA-1("") base64-encoded.
	want := "2jmj7l5rSw0yVb/vlWAYkK/YBwk="
	got := Bytes(nil)
	if got != want {
		t.Errorf("Bytes(nil): got %q, want %q", got, want)
	}
}

func TestPublicKeyDigestEscapesSlash(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	digest, err := PublicKeyDigest(key)
	if err != nil {
		t.Fatalf("PublicKeyDigest: %v", err)
	}
	if digest == "" {
		t.Fatal("digest is empty")
	}
	for _, r := range digest {
		if r == '/' {
			t.Errorf("unescaped '/' found in digest %q", digest)
		}
	}
}
