package relay

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/daehyun-ko/crossfill/pkg/crypto"
)

// FillAuthorization is the one-shot payload a fired trigger emits: fill this
// order, settling the counter leg against this beneficiary.
type FillAuthorization struct {
	OrderID     uint64
	Beneficiary common.Address
}

// Message is the cross-domain instruction carried by the relay channel.
// The channel gives at-least-once, unordered delivery with no built-in
// idempotency; receivers rely on the order's activation flag to make
// duplicates and stragglers safe.
type Message struct {
	TargetDomain   uint64
	TargetContract common.Address
	GasBudget      uint64
	Payload        FillAuthorization
	Sig            []byte // 65-byte secp256k1 signature over signingBytes
}

// signingBytes packs the signed fields deterministically:
// domain (8B BE) || contract (20B) || gas (8B BE) || orderID (8B BE) || beneficiary (20B).
func (m *Message) signingBytes() []byte {
	buf := make([]byte, 64)
	binary.BigEndian.PutUint64(buf[0:8], m.TargetDomain)
	copy(buf[8:28], m.TargetContract[:])
	binary.BigEndian.PutUint64(buf[28:36], m.GasBudget)
	binary.BigEndian.PutUint64(buf[36:44], m.Payload.OrderID)
	copy(buf[44:64], m.Payload.Beneficiary[:])
	return buf
}

// Sign attaches the relay identity's signature to the message.
func (m *Message) Sign(signer *crypto.Signer) error {
	sig, err := signer.SignMessage(m.signingBytes())
	if err != nil {
		return fmt.Errorf("sign authorization: %w", err)
	}
	m.Sig = sig
	return nil
}

// SignerAddress recovers the identity that signed the message.
// A spoofed or unsigned message fails here, before any privileged call.
func (m *Message) SignerAddress() (common.Address, error) {
	if len(m.Sig) == 0 {
		return common.Address{}, fmt.Errorf("message is unsigned")
	}
	return crypto.RecoverAddress(m.signingBytes(), m.Sig)
}
