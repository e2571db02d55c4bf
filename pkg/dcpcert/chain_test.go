package dcpcert

import "testing"

func testConfig() SelfSignedConfig {
	return SelfSignedConfig{
		Organisation:           "example.org",
		OrganisationalUnit:     "libdcp",
		RootCommonName:         "CA",
		IntermediateCommonName: "Intermediate",
		LeafCommonName:         "Leaf",
	}
}

func TestSelfSignedChainIsValid(t *testing.T) {
	chain, key, err := NewSelfSigned(testConfig())
	if err != nil {
		t.Fatalf("NewSelfSigned failed: %v", err)
	}
	if chain.PrivateKey != key {
		t.Fatal("chain's private key does not match returned key")
	}

	var reason string
	if !chain.Valid(&reason) {
		t.Fatalf("chain should be valid, got reason: %s", reason)
	}
}

func TestRootToLeafOrdering(t *testing.T) {
	chain, _, err := NewSelfSigned(testConfig())
	if err != nil {
		t.Fatalf("NewSelfSigned failed: %v", err)
	}

	ordered, err := chain.RootToLeaf()
	if err != nil {
		t.Fatalf("RootToLeaf failed: %v", err)
	}
	if len(ordered) != 3 {
		t.Fatalf("expected 3 certificates, got %d", len(ordered))
	}
	if ordered[0].Subject.CommonName != "CA" {
		t.Errorf("expected root first, got %s", ordered[0].Subject.CommonName)
	}
	if ordered[2].Subject.CommonName != "Leaf" {
		t.Errorf("expected leaf last, got %s", ordered[2].Subject.CommonName)
	}

	leafToRoot, err := chain.LeafToRoot()
	if err != nil {
		t.Fatalf("LeafToRoot failed: %v", err)
	}
	if leafToRoot[0].Subject.CommonName != "Leaf" {
		t.Errorf("expected leaf first, got %s", leafToRoot[0].Subject.CommonName)
	}
}

func TestRemovingIntermediateBreaksChain(t *testing.T) {
	chain, _, err := NewSelfSigned(testConfig())
	if err != nil {
		t.Fatalf("NewSelfSigned failed: %v", err)
	}

	// Drop the intermediate: root and leaf alone do not form a chain,
	// since the leaf's issuer is the intermediate's subject.
	root := chain.Certificates[0]
	leaf := chain.Certificates[2]

	pruned := &Chain{}
	pruned.Add(root)
	pruned.Add(leaf)

	var reason string
	if pruned.Valid(&reason) {
		t.Fatal("chain without intermediate should be invalid")
	}
	if reason != ErrNotAChain.Error() {
		t.Errorf("expected %q, got %q", ErrNotAChain.Error(), reason)
	}
}
