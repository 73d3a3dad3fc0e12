// Command actioncodectl is a local CLI that exercises the wallet-strategy
// generate path end-to-end using an encrypted Ed25519 keystore as the
// SignFn. It is a demo/test harness, not part of the specified protocol
// core.
package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/btcsuite/btcutil/base58"

	"github.com/actioncodes/protocol-core/actioncode"
	"github.com/actioncodes/protocol-core/chainadapter/solana"
	"github.com/actioncodes/protocol-core/cmd/internal/passphrase"
	"github.com/actioncodes/protocol-core/keystore"
	"github.com/actioncodes/protocol-core/types"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage())
		return 1
	}

	switch args[0] {
	case "keygen":
		return runKeygen(args[1:])
	case "generate":
		return runGenerate(args[1:])
	default:
		fmt.Fprintln(os.Stderr, usage())
		return 1
	}
}

func usage() string {
	return "Usage: actioncodectl <keygen|generate> [args...]"
}

func runKeygen(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: actioncodectl keygen <keystore-path>")
		return 1
	}
	path := args[0]

	source := passphrase.NewSource("ACTIONCODES_KEYSTORE_PASSPHRASE")
	pass, err := source.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	pub, err := keystore.Generate(path, pass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Generated keypair, pubkey: %s\n", base58.Encode(pub))
	return 0
}

func runGenerate(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: actioncodectl generate <keystore-path>")
		return 1
	}
	path := args[0]

	source := passphrase.NewSource("ACTIONCODES_KEYSTORE_PASSPHRASE")
	pass, err := source.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	priv, err := keystore.Load(path, pass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	pubkey := base58.Encode(priv.Public().(ed25519.PublicKey))

	protocol := actioncode.NewProtocol(types.CodeGenerationConfig{CodeLength: 8, TTLMs: 120000})
	protocol.RegisterAdapter("solana", solana.New(nil))

	signFn := func(_ context.Context, message []byte, _ types.Chain) (string, error) {
		return base58.Encode(ed25519.Sign(priv, message)), nil
	}

	windowStart := time.Now().UnixMilli()
	code, err := protocol.GenerateWithWallet(context.Background(), pubkey, "solana", windowStart, signFn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("code:      %s\n", code.Code)
	fmt.Printf("pubkey:    %s\n", code.Pubkey)
	fmt.Printf("expiresAt: %s\n", strconv.FormatInt(code.ExpiresAt, 10))
	return 0
}
