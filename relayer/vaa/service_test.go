package vaa_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	logTest "github.com/sirupsen/logrus/hooks/test"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/keep-network/tbtc-relayer/relayer/vaa"
	"github.com/keep-network/tbtc-relayer/shared/params"
	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

type fakeBridge struct {
	completed bool
	err       error
}

func (f *fakeBridge) IsTransferCompleted(_ context.Context, _ *vaa.ParsedVAA) (bool, error) {
	return f.completed, f.err
}

type fakeContext struct {
	receipt    *vaa.Receipt
	receiptErr error
	messages   []vaa.Message
	parseErr   error
	bridge     vaa.TokenBridge
	bridgeErr  error
}

func (f *fakeContext) TransactionReceipt(_ context.Context, _ string) (*vaa.Receipt, error) {
	return f.receipt, f.receiptErr
}

func (f *fakeContext) ParseWormholeMessages(_ *vaa.Receipt) ([]vaa.Message, error) {
	return f.messages, f.parseErr
}

func (f *fakeContext) TokenBridge() (vaa.TokenBridge, error) {
	if f.bridgeErr != nil {
		return nil, f.bridgeErr
	}
	return f.bridge, nil
}

type fakeSource struct {
	calls   []string
	returns map[string]*vaa.ParsedVAA
	err     error
}

func (f *fakeSource) GetVAA(_ context.Context, _ vaa.Message, discriminator string, _ time.Duration) (*vaa.ParsedVAA, error) {
	f.calls = append(f.calls, discriminator)
	if f.err != nil {
		return nil, f.err
	}
	return f.returns[discriminator], nil
}

func mustAddress(t *testing.T, hex string) sdkvaa.Address {
	addr, err := sdkvaa.StringToAddress(hex)
	require.NoError(t, err)
	return addr
}

func testConfig() *params.RelayerConfig {
	cfg := params.DefaultRelayerConfig()
	cfg.VAAFetchMaxRetries = 5
	cfg.VAAFetchRetryDelay = 60 * time.Second
	return cfg
}

func testService(l2 *fakeContext, l1 *fakeContext, source vaa.Source, cfg *params.RelayerConfig) *vaa.Service {
	provider := func(chainID sdkvaa.ChainID) (vaa.ChainContext, error) {
		switch chainID {
		case sdkvaa.ChainIDArbitrum:
			return l2, nil
		case sdkvaa.ChainIDEthereum:
			return l1, nil
		}
		return nil, errors.Errorf("no context for chain %d", chainID)
	}
	return vaa.NewService(source, provider, cfg)
}

const emitterHex = "000000000000000000000000000000000000000000000000000000000000dead"

func happyMessage(t *testing.T) vaa.Message {
	return vaa.Message{
		ChainID:  sdkvaa.ChainIDArbitrum,
		Emitter:  mustAddress(t, emitterHex),
		Sequence: 123,
	}
}

func happyParsedVAA(t *testing.T) *vaa.ParsedVAA {
	return &vaa.ParsedVAA{
		VAA: &sdkvaa.VAA{
			EmitterChain:     sdkvaa.ChainIDArbitrum,
			EmitterAddress:   mustAddress(t, emitterHex),
			Sequence:         123,
			ConsistencyLevel: 1,
		},
		ProtocolName: "TokenBridge",
		PayloadName:  "TransferWithPayload",
		Bytes:        []byte{11, 22, 33, 44, 55},
	}
}

func TestFetchAndVerify_HappyPath(t *testing.T) {
	l2 := &fakeContext{
		receipt:  &vaa.Receipt{TransactionHash: "0xl2", Status: 1},
		messages: []vaa.Message{happyMessage(t)},
	}
	l1 := &fakeContext{bridge: &fakeBridge{completed: true}}
	source := &fakeSource{returns: map[string]*vaa.ParsedVAA{
		vaa.DiscriminatorTransferWithPayload: happyParsedVAA(t),
	}}
	service := testService(l2, l1, source, testConfig())

	result, failure := service.FetchAndVerifyVAAForL2Event(
		context.Background(), "0xl2", sdkvaa.ChainIDArbitrum, "0xdead", sdkvaa.ChainIDEthereum)
	require.Equal(t, (*vaa.Failure)(nil), failure)
	require.NotNil(t, result)
	assert.DeepEqual(t, []byte{11, 22, 33, 44, 55}, result.VAABytes)
	assert.Equal(t, "TransferWithPayload", result.ParsedVAA.PayloadName)
}

func TestFetchAndVerify_VAANotFound(t *testing.T) {
	hook := logTest.NewGlobal()
	l2 := &fakeContext{
		receipt:  &vaa.Receipt{TransactionHash: "0xl2", Status: 1},
		messages: []vaa.Message{happyMessage(t)},
	}
	l1 := &fakeContext{bridge: &fakeBridge{completed: true}}
	source := &fakeSource{returns: map[string]*vaa.ParsedVAA{}}
	service := testService(l2, l1, source, testConfig())

	result, failure := service.FetchAndVerifyVAAForL2Event(
		context.Background(), "0xl2", sdkvaa.ChainIDArbitrum, "0xdead", sdkvaa.ChainIDEthereum)
	require.Equal(t, (*vaa.Result)(nil), result)
	require.NotNil(t, failure)
	assert.Equal(t, vaa.FailureVAANotFound, failure.Class)

	// Both discriminators were tried, in order, exactly once each.
	require.Equal(t, 2, len(source.calls))
	assert.Equal(t, vaa.DiscriminatorTransferWithPayload, source.calls[0])
	assert.Equal(t, vaa.DiscriminatorTransfer, source.calls[1])
	require.LogsContain(t, hook, "did not return a VAA for message ID")
}

func TestFetchAndVerify_EmitterMismatchSkipsFetch(t *testing.T) {
	hook := logTest.NewGlobal()
	other := vaa.Message{
		ChainID:  sdkvaa.ChainIDArbitrum,
		Emitter:  mustAddress(t, "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
		Sequence: 123,
	}
	l2 := &fakeContext{
		receipt:  &vaa.Receipt{TransactionHash: "0xl2", Status: 1},
		messages: []vaa.Message{other},
	}
	l1 := &fakeContext{bridge: &fakeBridge{completed: true}}
	source := &fakeSource{}
	service := testService(l2, l1, source, testConfig())

	result, failure := service.FetchAndVerifyVAAForL2Event(
		context.Background(), "0xl2", sdkvaa.ChainIDArbitrum, "0xdead", sdkvaa.ChainIDEthereum)
	require.Equal(t, (*vaa.Result)(nil), result)
	require.NotNil(t, failure)
	assert.Equal(t, vaa.FailureNoMatchingEmitter, failure.Class)
	assert.Equal(t, 0, len(source.calls))
	require.LogsContain(t, hook, "Relevant Wormhole message not found")
}

func TestFetchAndVerify_RevertedReceipt(t *testing.T) {
	l2 := &fakeContext{receipt: &vaa.Receipt{TransactionHash: "0xl2", Status: 0}}
	service := testService(l2, &fakeContext{}, &fakeSource{}, testConfig())

	_, failure := service.FetchAndVerifyVAAForL2Event(
		context.Background(), "0xl2", sdkvaa.ChainIDArbitrum, "0xdead", sdkvaa.ChainIDEthereum)
	require.NotNil(t, failure)
	assert.Equal(t, vaa.FailureL2TxReverted, failure.Class)
}

func TestFetchAndVerify_MissingReceipt(t *testing.T) {
	l2 := &fakeContext{receipt: nil}
	service := testService(l2, &fakeContext{}, &fakeSource{}, testConfig())

	_, failure := service.FetchAndVerifyVAAForL2Event(
		context.Background(), "0xl2", sdkvaa.ChainIDArbitrum, "0xdead", sdkvaa.ChainIDEthereum)
	require.NotNil(t, failure)
	assert.Equal(t, vaa.FailureL2ReceiptMissing, failure.Class)
}

func TestFetchAndVerify_NoWormholeMessages(t *testing.T) {
	l2 := &fakeContext{receipt: &vaa.Receipt{TransactionHash: "0xl2", Status: 1}}
	service := testService(l2, &fakeContext{}, &fakeSource{}, testConfig())

	_, failure := service.FetchAndVerifyVAAForL2Event(
		context.Background(), "0xl2", sdkvaa.ChainIDArbitrum, "0xdead", sdkvaa.ChainIDEthereum)
	require.NotNil(t, failure)
	assert.Equal(t, vaa.FailureNoWormholeMessages, failure.Class)
}

func TestFetchAndVerify_TransferNotCompleted(t *testing.T) {
	l2 := &fakeContext{
		receipt:  &vaa.Receipt{TransactionHash: "0xl2", Status: 1},
		messages: []vaa.Message{happyMessage(t)},
	}
	l1 := &fakeContext{bridge: &fakeBridge{completed: false}}
	source := &fakeSource{returns: map[string]*vaa.ParsedVAA{
		vaa.DiscriminatorTransferWithPayload: happyParsedVAA(t),
	}}
	service := testService(l2, l1, source, testConfig())

	_, failure := service.FetchAndVerifyVAAForL2Event(
		context.Background(), "0xl2", sdkvaa.ChainIDArbitrum, "0xdead", sdkvaa.ChainIDEthereum)
	require.NotNil(t, failure)
	assert.Equal(t, vaa.FailureTransferNotCompleted, failure.Class)
}

func TestFetchAndVerify_CompletionCheckError(t *testing.T) {
	l2 := &fakeContext{
		receipt:  &vaa.Receipt{TransactionHash: "0xl2", Status: 1},
		messages: []vaa.Message{happyMessage(t)},
	}
	l1 := &fakeContext{bridge: &fakeBridge{err: errors.New("rpc down")}}
	source := &fakeSource{returns: map[string]*vaa.ParsedVAA{
		vaa.DiscriminatorTransferWithPayload: happyParsedVAA(t),
	}}
	service := testService(l2, l1, source, testConfig())

	_, failure := service.FetchAndVerifyVAAForL2Event(
		context.Background(), "0xl2", sdkvaa.ChainIDArbitrum, "0xdead", sdkvaa.ChainIDEthereum)
	require.NotNil(t, failure)
	assert.Equal(t, vaa.FailureL1CompletionCheckError, failure.Class)
}

func TestFetchAndVerify_ProtocolMismatch(t *testing.T) {
	parsed := happyParsedVAA(t)
	parsed.ProtocolName = "Core"
	l2 := &fakeContext{
		receipt:  &vaa.Receipt{TransactionHash: "0xl2", Status: 1},
		messages: []vaa.Message{happyMessage(t)},
	}
	l1 := &fakeContext{bridge: &fakeBridge{completed: true}}
	source := &fakeSource{returns: map[string]*vaa.ParsedVAA{
		vaa.DiscriminatorTransferWithPayload: parsed,
	}}
	service := testService(l2, l1, source, testConfig())

	_, failure := service.FetchAndVerifyVAAForL2Event(
		context.Background(), "0xl2", sdkvaa.ChainIDArbitrum, "0xdead", sdkvaa.ChainIDEthereum)
	require.NotNil(t, failure)
	assert.Equal(t, vaa.FailureVAAProtocolMismatch, failure.Class)
}

func TestFetchTimeout(t *testing.T) {
	cfg := testConfig()
	service := testService(&fakeContext{}, &fakeContext{}, &fakeSource{}, cfg)
	assert.Equal(t, 5*60*time.Second, service.FetchTimeout())

	// Zero retries still allows one attempt bounded by one delay.
	cfg.VAAFetchMaxRetries = 0
	assert.Equal(t, 60*time.Second, service.FetchTimeout())
}
