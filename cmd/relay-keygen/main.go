package main

import (
	"fmt"
	"os"

	"github.com/daehyun-ko/crossfill/pkg/crypto"
)

// relay-keygen generates the secp256k1 identity the trigger authority signs
// authorizations with. Set RELAY_PRIVKEY to the printed key on the authority
// node and ADMIN-bind the printed address on the venue node.
func main() {
	fmt.Println("Generating new relay keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address:     %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	fmt.Println()
	fmt.Println("Authority node:  RELAY_PRIVKEY=<private key>")
	fmt.Printf("Venue node:      bind relay %s via the admin identity\n", signer.Address().Hex())
}
