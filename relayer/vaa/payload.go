package vaa

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// PayloadID is the first byte of a token bridge VAA payload.
type PayloadID uint8

// Token bridge payload kinds.
const (
	PayloadIDTransfer            PayloadID = 1
	PayloadIDAssetMeta           PayloadID = 2
	PayloadIDTransferWithPayload PayloadID = 3
)

// Typed payload names used by the discriminator checks.
const (
	PayloadNameTransfer            = "Transfer"
	PayloadNameTransferWithPayload = "TransferWithPayload"
)

// ErrNotTokenBridgePayload marks payloads the token bridge decoder does not
// recognize.
var ErrNotTokenBridgePayload = errors.New("not a token bridge payload")

// TransferPayload is the decoded body of a token bridge Transfer or
// TransferWithPayload message.
type TransferPayload struct {
	ID           PayloadID
	Amount       *big.Int
	TokenAddress sdkvaa.Address
	TokenChain   sdkvaa.ChainID
	To           sdkvaa.Address
	ToChain      sdkvaa.ChainID
	// Fee is set for Transfer payloads only.
	Fee *big.Int
	// FromAddress and Payload are set for TransferWithPayload only.
	FromAddress sdkvaa.Address
	Payload     []byte
}

// Name returns the typed payload name of the decoded body.
func (p *TransferPayload) Name() string {
	if p.ID == PayloadIDTransferWithPayload {
		return PayloadNameTransferWithPayload
	}
	return PayloadNameTransfer
}

// DecodeTransferPayload decodes a token bridge payload of kind Transfer (1)
// or TransferWithPayload (3). The fixed part is 132 bytes after the payload
// ID byte; TransferWithPayload carries an arbitrary tail.
func DecodeTransferPayload(raw []byte) (*TransferPayload, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrNotTokenBridgePayload, "empty payload")
	}
	id := PayloadID(raw[0])
	body := raw[1:]
	switch id {
	case PayloadIDTransfer:
		if len(body) != 132 {
			return nil, errors.Wrapf(ErrNotTokenBridgePayload, "transfer payload is %d bytes, want 132", len(body))
		}
	case PayloadIDTransferWithPayload:
		if len(body) < 132 {
			return nil, errors.Wrapf(ErrNotTokenBridgePayload, "transfer-with-payload payload is %d bytes, want >= 132", len(body))
		}
	default:
		return nil, errors.Wrapf(ErrNotTokenBridgePayload, "payload ID %d", id)
	}

	p := &TransferPayload{ID: id, Amount: new(big.Int).SetBytes(body[:32])}
	copy(p.TokenAddress[:], body[32:64])
	p.TokenChain = sdkvaa.ChainID(binary.BigEndian.Uint16(body[64:66]))
	copy(p.To[:], body[66:98])
	p.ToChain = sdkvaa.ChainID(binary.BigEndian.Uint16(body[98:100]))
	if id == PayloadIDTransfer {
		p.Fee = new(big.Int).SetBytes(body[100:132])
		return p, nil
	}
	copy(p.FromAddress[:], body[100:132])
	p.Payload = append([]byte{}, body[132:]...)
	return p, nil
}
