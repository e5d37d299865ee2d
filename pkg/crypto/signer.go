package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the secp256k1 key pair identifying one side of the relay
// channel. The trigger authority signs outbound fill authorizations with it;
// the venue side recovers the address and matches it against the bound relay
// identity.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// GenerateKey creates a new random secp256k1 key pair.
func GenerateKey() (*Signer, error) {
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Signer{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key
// ("0x1234..." or "1234...", 64 hex chars).
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	privateKey, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &Signer{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the address derived from the public key.
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKeyHex returns the private key as hex string (WITHOUT 0x prefix).
// WARNING: Keep this secret! Never expose to users or logs
func (s *Signer) PrivateKeyHex() string {
	return fmt.Sprintf("%x", ethcrypto.FromECDSA(s.privateKey))
}

// SignMessage hashes the message with Keccak256 and signs the digest.
// Returns the signature in [R || S || V] format (65 bytes).
func (s *Signer) SignMessage(message []byte) ([]byte, error) {
	hash := ethcrypto.Keccak256Hash(message)
	sig, err := ethcrypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// RecoverAddress recovers the signer's address from a message and its
// 65-byte signature.
func RecoverAddress(message []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}

	hash := ethcrypto.Keccak256Hash(message)
	pubBytes, err := ethcrypto.Ecrecover(hash.Bytes(), signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	pub, err := ethcrypto.UnmarshalPubkey(pubBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unmarshal public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifySignature reports whether the signature over message was created by
// the given address.
func VerifySignature(address common.Address, message []byte, signature []byte) bool {
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	return recovered == address
}
