package dcpid

import "testing"

func TestNewProducesParsableIdentifier(t *testing.T) {
	id := New()
	if id.IsZero() {
		t.Fatal("expected New to produce a non-zero identifier")
	}
	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
	if !parsed.Equal(id) {
		t.Errorf("round trip mismatch: %q != %q", parsed, id)
	}
}

func TestParseAcceptsBareUUIDAndIsCaseInsensitive(t *testing.T) {
	id := New()
	bare, err := Parse(id.Hex())
	if err != nil {
		t.Fatalf("Parse(hex): %v", err)
	}
	if !bare.Equal(id) {
		t.Errorf("bare-uuid parse mismatch: %q != %q", bare, id)
	}

	upper := Identifier("urn:uuid:" + upperCase(id.Hex()))
	if !upper.Equal(id) {
		t.Errorf("expected case-insensitive equality, got %q != %q", upper, id)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("expected Parse to reject a malformed identifier")
	}
}

func upperCase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
