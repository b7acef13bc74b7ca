package parse

import (
	"strings"
	"testing"
)

func TestIsHexShortStrings(t *testing.T) {
	for _, s := range []string{"", "0", "x", "a"} {
		if err := IsHex(s); err == nil {
			t.Fatalf("IsHex(%q) should fail", s)
		}
	}
}

func TestIsHexPrefixOnly(t *testing.T) {
	for _, s := range []string{"0x", "0X", "0x10", "0Xff", "0xzz", "0x not hex at all"} {
		if err := IsHex(s); err != nil {
			t.Fatalf("IsHex(%q) failed: %v", s, err)
		}
	}
	if err := IsHex("10"); err == nil {
		t.Fatal("IsHex(10) should fail without marker")
	}
}

func TestMalformedBodyPassesIsHexButFailsDecoder(t *testing.T) {
	raw := "0x" + strings.Repeat("zz", 16)
	if err := IsHex(raw); err != nil {
		t.Fatalf("prefix check rejected %q: %v", raw, err)
	}
	if _, err := ParseH256(raw); err == nil {
		t.Fatal("H256 decoder should reject a malformed body")
	}
	if _, err := ParseAddress("0xzz"); err == nil {
		t.Fatal("address decoder should reject a malformed body")
	}
}

func TestParseU64(t *testing.T) {
	n, err := ParseU64("0x10")
	if err != nil || n != 16 {
		t.Fatalf("ParseU64(0x10) = %d, %v", n, err)
	}
	n, err = ParseU64("16")
	if err != nil || n != 16 {
		t.Fatalf("ParseU64(16) = %d, %v", n, err)
	}
	if _, err := ParseU64("not-a-number"); err == nil {
		t.Fatal("ParseU64(not-a-number) should fail")
	}
	if _, err := ParseU64("0xgg"); err == nil {
		t.Fatal("ParseU64(0xgg) should fail")
	}
}

func TestParseU256(t *testing.T) {
	v, err := ParseU256("0x10")
	if err != nil || v.Uint64() != 16 {
		t.Fatalf("ParseU256(0x10) = %v, %v", v, err)
	}
	v, err = ParseU256("1000000000000000000000000")
	if err != nil {
		t.Fatalf("ParseU256(decimal) failed: %v", err)
	}
	if v.IsZero() {
		t.Fatal("unexpected zero value")
	}
	for _, s := range []string{"-1", "1.5", "abc", "0x" + strings.Repeat("ff", 33)} {
		if _, err := ParseU256(s); err == nil {
			t.Fatalf("ParseU256(%q) should fail", s)
		}
	}
}

func TestParseHeight(t *testing.T) {
	for _, s := range []string{"latest", "earliest", "0x5", "42"} {
		got, err := ParseHeight(s)
		if err != nil {
			t.Fatalf("ParseHeight(%q) failed: %v", s, err)
		}
		if got != s {
			t.Fatalf("ParseHeight(%q) rewrote token to %q", s, got)
		}
	}
	for _, s := range []string{"-1", "pending", ""} {
		if _, err := ParseHeight(s); err == nil {
			t.Fatalf("ParseHeight(%q) should fail", s)
		}
	}
}

func TestRemove0xIdempotent(t *testing.T) {
	for _, s := range []string{"0x10", "0X10", "10", "", "0x", "0x0x10"} {
		once := Remove0x(s)
		if Remove0x(once) != once {
			t.Fatalf("Remove0x not idempotent for %q: %q vs %q", s, once, Remove0x(once))
		}
	}
	if Remove0x("0x10") != "10" || Remove0x("10") != "10" {
		t.Fatal("Remove0x basic behavior broken")
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x" + strings.Repeat("ab", 20))
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}
	if addr.Hex() == "" {
		t.Fatal("empty address")
	}
	if _, err := ParseAddress(strings.Repeat("ab", 20)); err == nil {
		t.Fatal("address without marker should fail")
	}
	if _, err := ParseAddress("0x" + strings.Repeat("ab", 19)); err == nil {
		t.Fatal("short address should fail")
	}
}

func TestParseH256(t *testing.T) {
	h, err := ParseH256("0x" + strings.Repeat("01", 32))
	if err != nil {
		t.Fatalf("ParseH256 failed: %v", err)
	}
	if h[31] != 0x01 {
		t.Fatalf("unexpected hash bytes: %x", h)
	}
	if _, err := ParseH256("0x" + strings.Repeat("01", 31)); err == nil {
		t.Fatal("short key should fail")
	}
}

func TestValidatePrivKeyWidths(t *testing.T) {
	if err := ValidatePrivKey("0x" + strings.Repeat("11", 32)); err != nil {
		t.Fatalf("32-byte key rejected: %v", err)
	}
	if err := ValidatePrivKey("0x" + strings.Repeat("11", 64)); err != nil {
		t.Fatalf("64-byte key rejected: %v", err)
	}
	for _, s := range []string{strings.Repeat("11", 32), "0x1234", "0x" + strings.Repeat("zz", 32)} {
		if err := ValidatePrivKey(s); err == nil {
			t.Fatalf("ValidatePrivKey(%q) should fail", s)
		}
	}
}

func TestParsePrivateKeySchemeDependent(t *testing.T) {
	raw := "0x" + strings.Repeat("11", 32)

	secp, err := ParsePrivateKey(raw, SchemeSecp256k1)
	if err != nil {
		t.Fatalf("secp256k1 decode failed: %v", err)
	}
	ed, err := ParsePrivateKey(raw, SchemeEd25519)
	if err != nil {
		t.Fatalf("ed25519 decode failed: %v", err)
	}
	if secp.Address() == ed.Address() {
		t.Fatal("same bytes must decode to different identities under different schemes")
	}

	digest := make([]byte, 32)
	sigSecp, err := secp.Sign(digest)
	if err != nil || len(sigSecp) == 0 {
		t.Fatalf("secp256k1 sign failed: %v", err)
	}
	sigEd, err := ed.Sign(digest)
	if err != nil || len(sigEd) == 0 {
		t.Fatalf("ed25519 sign failed: %v", err)
	}
}

func TestParsePrivateKeyRejectsSecpOversize(t *testing.T) {
	// A 64-byte value is a valid ed25519 keypair but not a secp256k1 scalar.
	raw := "0x" + strings.Repeat("22", 64)
	if _, err := ParsePrivateKey(raw, SchemeSecp256k1); err == nil {
		t.Fatal("64-byte secp256k1 key should fail")
	}
	if _, err := ParsePrivateKey(raw, SchemeEd25519); err != nil {
		t.Fatalf("64-byte ed25519 key rejected: %v", err)
	}
}
