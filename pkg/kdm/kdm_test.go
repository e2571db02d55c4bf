package kdm

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/mart-jansink/libdcp/pkg/dcpid"
)

func TestWrapUnwrapKeyBlockRoundTrips(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	block, err := WrapKeyBlock(key, &priv.PublicKey)
	if err != nil {
		t.Fatalf("WrapKeyBlock: %v", err)
	}
	if bytes.Equal(block, key) {
		t.Fatal("wrapped block must not equal plaintext key")
	}

	unwrapped, err := UnwrapKeyBlock(block, priv)
	if err != nil {
		t.Fatalf("UnwrapKeyBlock: %v", err)
	}
	if !bytes.Equal(unwrapped, key) {
		t.Errorf("unwrapped key = %x, want %x", unwrapped, key)
	}
}

func TestUnwrapKeyBlockRejectsUndersizedKey(t *testing.T) {
	small, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if _, err := UnwrapKeyBlock([]byte("irrelevant"), small); err != ErrRSAKeyTooSmall {
		t.Errorf("expected ErrRSAKeyTooSmall, got %v", err)
	}
}

func TestUnwrapKeyBlockRejectsWrongKey(t *testing.T) {
	priv1, _ := rsa.GenerateKey(rand.Reader, 2048)
	priv2, _ := rsa.GenerateKey(rand.Reader, 2048)

	block, err := WrapKeyBlock([]byte("0123456789abcdef"), &priv1.PublicKey)
	if err != nil {
		t.Fatalf("WrapKeyBlock: %v", err)
	}
	if _, err := UnwrapKeyBlock(block, priv2); err != ErrRSADecryption {
		t.Errorf("expected ErrRSADecryption, got %v", err)
	}
}

func TestDecryptedKDMKeyByID(t *testing.T) {
	id1, id2 := dcpid.New(), dcpid.New()
	k := DecryptedKDM{
		CPLID: dcpid.New(),
		Keys: []KeyTriple{
			{KeyID: id1, KeyBytes: []byte("key-one")},
			{KeyID: id2, KeyBytes: []byte("key-two")},
		},
	}

	got, ok := k.KeyByID(id2)
	if !ok {
		t.Fatal("expected to find id2")
	}
	if string(got) != "key-two" {
		t.Errorf("KeyByID(id2) = %q, want %q", got, "key-two")
	}

	if _, ok := k.KeyByID(dcpid.New()); ok {
		t.Error("expected lookup of unrelated id to fail")
	}
}
