package resolve

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"

	clierr "github.com/cita-toolkit/citactl/internal/errors"
	"github.com/cita-toolkit/citactl/internal/parse"
	"github.com/cita-toolkit/citactl/internal/session"
)

func testTree() (*cobra.Command, *cobra.Command) {
	root := &cobra.Command{Use: "root"}
	root.PersistentFlags().String(FlagURL, "", "node url")
	root.PersistentFlags().Bool(FlagDebug, false, "debug")
	root.PersistentFlags().Bool(FlagNoColor, false, "disable color")
	root.PersistentFlags().String(FlagEncryption, "", "scheme")
	group := &cobra.Command{Use: "amend"}
	leaf := &cobra.Command{Use: "balance", Run: func(*cobra.Command, []string) {}}
	leaf.Flags().String(FlagChainID, "", "chain id")
	leaf.Flags().String(FlagQuota, "", "quota")
	leaf.Flags().String(FlagPrivate, "", "signing key")
	leaf.Flags().String(FlagURL, "", "node url override")
	group.AddCommand(leaf)
	root.AddCommand(group)
	return root, leaf
}

func newSession() *session.Config {
	return session.New("http://session:1337", false, true, parse.SchemeSecp256k1)
}

func TestResolveSessionFallback(t *testing.T) {
	_, leaf := testTree()
	ctx, err := Resolve(leaf, newSession())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ctx.URL != "http://session:1337" || !ctx.Color || ctx.Debug {
		t.Fatalf("session defaults not applied: %+v", ctx)
	}
	if ctx.Scheme != parse.SchemeSecp256k1 {
		t.Fatalf("unexpected scheme: %s", ctx.Scheme)
	}
	if ctx.ChainIDSet || ctx.QuotaSet || ctx.PrivateKey != nil {
		t.Fatalf("absent flags must stay unset: %+v", ctx)
	}
}

func TestResolveLeafWinsOverSession(t *testing.T) {
	root, leaf := testTree()
	if err := root.PersistentFlags().Set(FlagURL, "http://root:1337"); err != nil {
		t.Fatal(err)
	}
	if err := leaf.Flags().Set(FlagURL, "http://leaf:1337"); err != nil {
		t.Fatal(err)
	}
	ctx, err := Resolve(leaf, newSession())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ctx.URL != "http://leaf:1337" {
		t.Fatalf("leaf value must win: %s", ctx.URL)
	}
}

func TestResolveOuterLevelOverSession(t *testing.T) {
	root, leaf := testTree()
	if err := root.PersistentFlags().Set(FlagURL, "http://root:1337"); err != nil {
		t.Fatal(err)
	}
	if err := root.PersistentFlags().Set(FlagNoColor, "true"); err != nil {
		t.Fatal(err)
	}
	ctx, err := Resolve(leaf, newSession())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ctx.URL != "http://root:1337" {
		t.Fatalf("root value must beat session: %s", ctx.URL)
	}
	if ctx.Color {
		t.Fatal("no-color must disable color")
	}
}

func TestResolveNumericFields(t *testing.T) {
	_, leaf := testTree()
	if err := leaf.Flags().Set(FlagChainID, "42"); err != nil {
		t.Fatal(err)
	}
	if err := leaf.Flags().Set(FlagQuota, "0x10"); err != nil {
		t.Fatal(err)
	}
	ctx, err := Resolve(leaf, newSession())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !ctx.ChainIDSet || ctx.ChainID != 42 {
		t.Fatalf("chain id not resolved: %+v", ctx)
	}
	if !ctx.QuotaSet || ctx.Quota != 16 {
		t.Fatalf("quota not resolved: %+v", ctx)
	}
}

func TestResolveSchemeBeforeKey(t *testing.T) {
	root, leaf := testTree()
	raw := "0x" + strings.Repeat("11", 32)
	if err := leaf.Flags().Set(FlagPrivate, raw); err != nil {
		t.Fatal(err)
	}

	ctx, err := Resolve(leaf, newSession())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	secpAddr := ctx.PrivateKey.Address()

	if err := root.PersistentFlags().Set(FlagEncryption, "ed25519"); err != nil {
		t.Fatal(err)
	}
	ctx, err = Resolve(leaf, newSession())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ctx.Scheme != parse.SchemeEd25519 {
		t.Fatalf("scheme override not applied: %s", ctx.Scheme)
	}
	if ctx.PrivateKey.Address() == secpAddr {
		t.Fatal("key must decode under the resolved scheme")
	}
}

func TestResolveKeyDecodeFailureIsResolutionError(t *testing.T) {
	root, leaf := testTree()
	// 64 raw bytes: valid ed25519 keypair, invalid secp256k1 scalar.
	raw := "0x" + strings.Repeat("22", 64)
	if err := leaf.Flags().Set(FlagPrivate, raw); err != nil {
		t.Fatal(err)
	}
	_, err := Resolve(leaf, newSession())
	if err == nil {
		t.Fatal("expected resolution error")
	}
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeResolve {
		t.Fatalf("expected CodeResolve, got %v", err)
	}

	if err := root.PersistentFlags().Set(FlagEncryption, "ed25519"); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(leaf, newSession()); err != nil {
		t.Fatalf("same bytes must resolve under ed25519: %v", err)
	}
}
