package urchain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Klingon-tech/n20-pow-minter/internal/log"
	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
)

// mirror relays broadcast transactions to a second explorer.
type mirror struct {
	url    string
	client *retryablehttp.Client
}

func newMirror(url string, timeout time.Duration) *mirror {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &mirror{url: url, client: client}
}

// relay posts rawHex to the mirror. Failures are logged and dropped.
func (m *mirror) relay(ctx context.Context, rawHex string) {
	if err := m.post(ctx, rawHex); err != nil {
		log.Indexer.Warn().Err(err).Str("mirror", m.url).Msg("Mirror broadcast failed")
		return
	}
	log.Indexer.Debug().Str("mirror", m.url).Msg("Mirror broadcast accepted")
}

func (m *mirror) post(ctx context.Context, rawHex string) error {
	body, err := sonic.Marshal(map[string]string{"raw_tx": rawHex})
	if err != nil {
		return fmt.Errorf("marshal mirror body: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mirror request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mirror request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mirror status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
