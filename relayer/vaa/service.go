// Package vaa implements the Wormhole VAA verification pipeline: given an L2
// transaction known to emit a Wormhole message, fetch the Guardian-signed VAA
// and verify it end-to-end against the expected emitter and the L1 token
// bridge completion state.
package vaa

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/keep-network/tbtc-relayer/shared/params"
)

var log = logrus.WithField("prefix", "vaa")

// FailureClass labels why a verification attempt produced no VAA.
type FailureClass string

// Verification failure classes.
const (
	FailureL2ReceiptMissing       FailureClass = "L2_RECEIPT_MISSING"
	FailureL2TxReverted           FailureClass = "L2_TX_REVERTED"
	FailureNoWormholeMessages     FailureClass = "NO_WORMHOLE_MESSAGES"
	FailureNoMatchingEmitter      FailureClass = "NO_MATCHING_EMITTER"
	FailureVAANotFound            FailureClass = "VAA_NOT_FOUND"
	FailureVAAEmitterMismatch     FailureClass = "VAA_EMITTER_MISMATCH"
	FailureVAAProtocolMismatch    FailureClass = "VAA_PROTOCOL_MISMATCH"
	FailureVAAPayloadMismatch     FailureClass = "VAA_PAYLOAD_MISMATCH"
	FailureTransferNotCompleted   FailureClass = "VAA_TRANSFER_NOT_COMPLETED"
	FailureL1CompletionCheckError FailureClass = "L1_COMPLETION_CHECK_ERROR"
	FailureVAABytesMissing        FailureClass = "VAA_BYTES_MISSING"
)

// Discriminators select the typed payload a VAA is decoded into. Fetch
// attempts try TransferWithPayload first, then Transfer.
const (
	DiscriminatorTransferWithPayload = "TokenBridge:TransferWithPayload"
	DiscriminatorTransfer            = "TokenBridge:Transfer"

	protocolTokenBridge = "TokenBridge"
)

// Failure is the classified outcome of a verification attempt that produced
// no VAA. It never escapes as a panic; callers branch on Class.
type Failure struct {
	Class FailureClass
	Err   error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return string(f.Class) + ": " + f.Err.Error()
	}
	return string(f.Class)
}

// Unwrap exposes the underlying cause to errors.Is chains.
func (f *Failure) Unwrap() error { return f.Err }

// Message is one Wormhole message decoded from an L2 receipt.
type Message struct {
	ChainID  sdkvaa.ChainID
	Emitter  sdkvaa.Address
	Sequence uint64
}

// MessageID renders the canonical chain/emitter/sequence form used by
// Guardian APIs and log lines.
func (m Message) MessageID() string {
	v := sdkvaa.VAA{
		EmitterChain:   m.ChainID,
		EmitterAddress: m.Emitter,
		Sequence:       m.Sequence,
	}
	return v.MessageID()
}

// ParsedVAA is a decoded Guardian-signed message plus the discriminator
// metadata the verification checks consume. Bytes holds the wire form when
// the source provides it; otherwise the VAA is re-serialized on demand.
type ParsedVAA struct {
	VAA          *sdkvaa.VAA
	ProtocolName string
	PayloadName  string
	Bytes        []byte
}

// Result is the successful outcome of a verification run.
type Result struct {
	VAABytes  []byte
	ParsedVAA *ParsedVAA
}

// Receipt is the chain-agnostic transaction receipt shape consumed by the
// pipeline. Raw carries the chain-native receipt for the message parser.
type Receipt struct {
	TransactionHash string
	Status          uint64
	Raw             interface{}
}

// ChainContext abstracts the per-chain SDK handles the pipeline needs.
type ChainContext interface {
	// TransactionReceipt fetches the receipt, or nil when the chain does not
	// know the transaction.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	// ParseWormholeMessages decodes the receipt into emitted messages.
	ParseWormholeMessages(receipt *Receipt) ([]Message, error)
	// TokenBridge returns the chain's token bridge handle.
	TokenBridge() (TokenBridge, error)
}

// TokenBridge answers whether a transfer attested by a VAA has been redeemed
// on this chain.
type TokenBridge interface {
	IsTransferCompleted(ctx context.Context, parsed *ParsedVAA) (bool, error)
}

// Source fetches a signed VAA for a message ID under a single discriminator.
// A nil VAA with a nil error means "not found under this discriminator".
type Source interface {
	GetVAA(ctx context.Context, msg Message, discriminator string, timeout time.Duration) (*ParsedVAA, error)
}

// ContextProvider resolves the ChainContext registered for a Wormhole chain
// ID.
type ContextProvider func(chainID sdkvaa.ChainID) (ChainContext, error)

// Service runs the verification pipeline. It is stateless per call and holds
// only long-lived handles set at construction.
type Service struct {
	source   Source
	contexts ContextProvider
	cfg      *params.RelayerConfig
}

// NewService wires a verification service over a VAA source and a chain
// context provider.
func NewService(source Source, contexts ContextProvider, cfg *params.RelayerConfig) *Service {
	if cfg == nil {
		cfg = params.Relayer()
	}
	return &Service{source: source, contexts: contexts, cfg: cfg}
}

// FetchTimeout bounds a single Source.GetVAA call. A zero retry budget still
// allows one attempt bounded by a single retry delay.
func (s *Service) FetchTimeout() time.Duration {
	retries := s.cfg.VAAFetchMaxRetries
	if retries < 1 {
		retries = 1
	}
	timeout := time.Duration(retries) * s.cfg.VAAFetchRetryDelay
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	return timeout
}

// FetchAndVerifyVAAForL2Event fetches and verifies the VAA emitted by the
// given L2 transaction. All failure paths return a nil result with a
// classified Failure and log a single structured error; the method never
// panics past its boundary.
func (s *Service) FetchAndVerifyVAAForL2Event(
	ctx context.Context,
	l2TxHash string,
	emitterChainID sdkvaa.ChainID,
	emitterAddress string,
	targetL1ChainID sdkvaa.ChainID,
) (*Result, *Failure) {
	l2Ctx, err := s.contexts(emitterChainID)
	if err != nil {
		return nil, s.fail(FailureL2ReceiptMissing, l2TxHash, errors.Wrap(err, "no chain context for emitter chain"))
	}

	receipt, err := l2Ctx.TransactionReceipt(ctx, l2TxHash)
	if err != nil {
		return nil, s.fail(FailureL2ReceiptMissing, l2TxHash, errors.Wrap(err, "could not fetch L2 receipt"))
	}
	if receipt == nil {
		return nil, s.fail(FailureL2ReceiptMissing, l2TxHash, errors.New("L2 receipt not found"))
	}
	if receipt.Status == 0 {
		return nil, s.fail(FailureL2TxReverted, l2TxHash, errors.New("L2 transaction reverted"))
	}

	messages, err := l2Ctx.ParseWormholeMessages(receipt)
	if err != nil {
		return nil, s.fail(FailureNoWormholeMessages, l2TxHash, errors.Wrap(err, "could not parse Wormhole messages"))
	}
	if len(messages) == 0 {
		return nil, s.fail(FailureNoWormholeMessages, l2TxHash, errors.New("receipt emitted no Wormhole messages"))
	}

	expectedEmitter, err := sdkvaa.StringToAddress(emitterAddress)
	if err != nil {
		return nil, s.fail(FailureNoMatchingEmitter, l2TxHash, errors.Wrapf(err, "malformed emitter address %s", emitterAddress))
	}
	relevant, found := selectMessage(messages, emitterChainID, expectedEmitter)
	if !found {
		return nil, s.fail(FailureNoMatchingEmitter, l2TxHash,
			errors.Errorf("Relevant Wormhole message not found for emitter %s on chain %d", expectedEmitter.String(), emitterChainID))
	}

	parsed, failure := s.fetchByDiscriminator(ctx, relevant)
	if failure != nil {
		return nil, s.logFailure(failure, l2TxHash)
	}

	if failure := s.verifyEmitter(parsed, emitterChainID, expectedEmitter); failure != nil {
		return nil, s.logFailure(failure, l2TxHash)
	}

	l1Ctx, err := s.contexts(targetL1ChainID)
	if err != nil {
		return nil, s.fail(FailureL1CompletionCheckError, l2TxHash, errors.Wrap(err, "no chain context for target L1 chain"))
	}
	bridge, err := l1Ctx.TokenBridge()
	if err != nil {
		return nil, s.fail(FailureL1CompletionCheckError, l2TxHash, errors.Wrap(err, "could not acquire L1 token bridge"))
	}
	completed, err := bridge.IsTransferCompleted(ctx, parsed)
	if err != nil {
		return nil, s.fail(FailureL1CompletionCheckError, l2TxHash, errors.Wrap(err, "L1 completion check failed"))
	}
	if !completed {
		return nil, s.fail(FailureTransferNotCompleted, l2TxHash, errors.New("transfer is not completed on L1"))
	}

	wire := parsed.Bytes
	if len(wire) == 0 {
		wire, err = parsed.VAA.Marshal()
		if err != nil || len(wire) == 0 {
			return nil, s.fail(FailureVAABytesMissing, l2TxHash, errors.Wrap(err, "could not obtain VAA wire bytes"))
		}
	}

	log.WithFields(logrus.Fields{
		"l2TxHash":  l2TxHash,
		"messageId": relevant.MessageID(),
		"payload":   parsed.PayloadName,
	}).Info("VAA fetched and verified")
	return &Result{VAABytes: wire, ParsedVAA: parsed}, nil
}

func selectMessage(messages []Message, chainID sdkvaa.ChainID, emitter sdkvaa.Address) (Message, bool) {
	for _, m := range messages {
		if m.ChainID == chainID && m.Emitter == emitter {
			return m, true
		}
	}
	return Message{}, false
}

// fetchByDiscriminator tries TransferWithPayload first, then Transfer. The
// first non-nil VAA wins; when every attempt comes back empty the last error
// is carried in the failure.
func (s *Service) fetchByDiscriminator(ctx context.Context, msg Message) (*ParsedVAA, *Failure) {
	timeout := s.FetchTimeout()
	var lastErr error
	for _, discriminator := range []string{DiscriminatorTransferWithPayload, DiscriminatorTransfer} {
		parsed, err := s.source.GetVAA(ctx, msg, discriminator, timeout)
		if err != nil {
			lastErr = err
			continue
		}
		if parsed != nil {
			return parsed, nil
		}
	}
	err := errors.Errorf("guardian did not return a VAA for message ID %s", msg.MessageID())
	if lastErr != nil {
		err = errors.Wrapf(lastErr, "guardian did not return a VAA for message ID %s", msg.MessageID())
	}
	return nil, &Failure{Class: FailureVAANotFound, Err: err}
}

func (s *Service) verifyEmitter(parsed *ParsedVAA, chainID sdkvaa.ChainID, emitter sdkvaa.Address) *Failure {
	if parsed.VAA.EmitterChain != chainID {
		return &Failure{Class: FailureVAAEmitterMismatch,
			Err: errors.Errorf("VAA emitter chain %d, want %d", parsed.VAA.EmitterChain, chainID)}
	}
	if !bytes.Equal(parsed.VAA.EmitterAddress[:], emitter[:]) {
		return &Failure{Class: FailureVAAEmitterMismatch,
			Err: errors.Errorf("VAA emitter address %s, want %s", parsed.VAA.EmitterAddress.String(), emitter.String())}
	}
	if parsed.ProtocolName != protocolTokenBridge {
		return &Failure{Class: FailureVAAProtocolMismatch,
			Err: errors.Errorf("VAA protocol %q, want %q", parsed.ProtocolName, protocolTokenBridge)}
	}
	if parsed.PayloadName != PayloadNameTransfer && parsed.PayloadName != PayloadNameTransferWithPayload {
		return &Failure{Class: FailureVAAPayloadMismatch,
			Err: errors.Errorf("unexpected VAA payload %q", parsed.PayloadName)}
	}
	if parsed.VAA.ConsistencyLevel < s.cfg.VAAConsistencyLevelFloor {
		log.WithFields(logrus.Fields{
			"consistencyLevel": parsed.VAA.ConsistencyLevel,
			"floor":            s.cfg.VAAConsistencyLevelFloor,
		}).Warn("VAA consistency level below configured floor")
	}
	return nil
}

func (s *Service) fail(class FailureClass, l2TxHash string, err error) *Failure {
	return s.logFailure(&Failure{Class: class, Err: err}, l2TxHash)
}

// logFailure emits the single structured error line every failure path
// produces, then hands the classified failure back to the caller.
func (s *Service) logFailure(failure *Failure, l2TxHash string) *Failure {
	log.WithError(failure.Err).WithFields(logrus.Fields{
		"l2TxHash":     l2TxHash,
		"failureClass": failure.Class,
	}).Error("VAA verification failed")
	return failure
}
