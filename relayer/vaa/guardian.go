package vaa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// DefaultGuardianAPIURL is the public Wormhole Guardian REST endpoint.
const DefaultGuardianAPIURL = "https://api.wormholescan.io"

const (
	guardianCacheTTL     = 10 * time.Minute
	guardianCacheSweep   = 30 * time.Minute
	guardianHTTPTimeout  = 30 * time.Second
	guardianRetryBackoff = 5 * time.Second
)

// GuardianSource fetches signed VAAs from a Guardian REST API. Fetched VAAs
// are cached by message ID; the two discriminator attempts of a single
// verification run hit the network at most once.
type GuardianSource struct {
	baseURL string
	client  *http.Client
	cache   *cache.Cache
}

// NewGuardianSource creates a Source over the Guardian REST API at baseURL.
// An empty baseURL selects the public endpoint.
func NewGuardianSource(baseURL string) *GuardianSource {
	if baseURL == "" {
		baseURL = DefaultGuardianAPIURL
	}
	return &GuardianSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: guardianHTTPTimeout},
		cache:   cache.New(guardianCacheTTL, guardianCacheSweep),
	}
}

var _ Source = (*GuardianSource)(nil)

// GetVAA implements Source. It polls the Guardian API until the VAA appears
// or the timeout elapses, then decodes the token bridge payload and matches
// it against the requested discriminator. A payload of a different kind is
// "not found" for this discriminator, not an error.
func (g *GuardianSource) GetVAA(ctx context.Context, msg Message, discriminator string, timeout time.Duration) (*ParsedVAA, error) {
	parsed, err := g.fetch(ctx, msg, timeout)
	if err != nil {
		return nil, err
	}
	wantPayload := PayloadNameTransferWithPayload
	if discriminator == DiscriminatorTransfer {
		wantPayload = PayloadNameTransfer
	}
	if parsed.PayloadName != wantPayload {
		return nil, nil
	}
	return parsed, nil
}

func (g *GuardianSource) fetch(ctx context.Context, msg Message, timeout time.Duration) (*ParsedVAA, error) {
	messageID := msg.MessageID()
	if cached, ok := g.cache.Get(messageID); ok {
		return cached.(*ParsedVAA), nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		parsed, err := g.fetchOnce(ctx, msg)
		if err == nil {
			g.cache.Set(messageID, parsed, cache.DefaultExpiration)
			return parsed, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(lastErr, "guardian fetch timed out for message ID %s", messageID)
		case <-time.After(guardianRetryBackoff):
		}
	}
}

func (g *GuardianSource) fetchOnce(ctx context.Context, msg Message) (*ParsedVAA, error) {
	url := fmt.Sprintf("%s/v1/signed_vaa/%d/%s/%d", g.baseURL, msg.ChainID, msg.Emitter.String(), msg.Sequence)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "guardian request failed")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close guardian response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("guardian returned status %d", resp.StatusCode)
	}

	var body struct {
		VAABytes string `json:"vaaBytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "could not decode guardian response")
	}
	raw, err := base64.StdEncoding.DecodeString(body.VAABytes)
	if err != nil {
		return nil, errors.Wrap(err, "guardian returned malformed VAA bytes")
	}

	v, err := sdkvaa.Unmarshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse VAA")
	}
	transfer, err := DecodeTransferPayload(v.Payload)
	if err != nil {
		return nil, err
	}
	return &ParsedVAA{
		VAA:          v,
		ProtocolName: protocolTokenBridge,
		PayloadName:  transfer.Name(),
		Bytes:        raw,
	}, nil
}
