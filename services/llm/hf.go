// Package llmsvc talks to hosted language models and hands their answers over as a stream of chunks.
package llmsvc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/urfu-lab/studyhub/core/chat"
)

const HFBaseURL = "https://api-inference.huggingface.co/models/"

// maxLine bounds one event-stream line.
const maxLine = 1 << 20

type HFClient struct {
	url          string
	apiKey       string
	maxNewTokens int
	timeout      time.Duration
	client       *http.Client
}

var _ chat.Completer = (*HFClient)(nil)

// NewHFClient returns a client for the inference endpoint of model under baseURL.
// timeout bounds connecting, waiting for the response headers and every pause between two reads of the
// answer. The answer as a whole may take longer.
func NewHFClient(baseURL, apiKey, model string, maxNewTokens int, timeout time.Duration) *HFClient {
	if baseURL == "" {
		baseURL = HFBaseURL
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &HFClient{
		url:          strings.TrimRight(baseURL, "/") + "/" + model,
		apiKey:       apiKey,
		maxNewTokens: maxNewTokens,
		timeout:      timeout,
		client:       &http.Client{Transport: transport},
	}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Stream     bool         `json:"stream"`
}

type hfParameters struct {
	MaxNewTokens   int  `json:"max_new_tokens"`
	ReturnFullText bool `json:"return_full_text"`
}

func (c *HFClient) Stream(ctx context.Context, prompt string, onChunk func(string) error) error {
	body, err := json.Marshal(hfRequest{
		Inputs:     prompt,
		Parameters: hfParameters{MaxNewTokens: c.maxNewTokens},
		Stream:     true,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling llm")
	}
	defer resp.Body.Close()

	idle := newIdleTimer(c.timeout, cancel)
	defer idle.stop()
	respBody := idleReader{r: resp.Body, idle: idle}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(respBody, maxLine))
		return upstreamError(resp.StatusCode, raw)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return idle.check(readEvents(respBody, onChunk))
	}

	raw, err := io.ReadAll(respBody)
	if err != nil {
		return idle.check(errors.Wrap(err, "reading llm response"))
	}
	if text := generatedText(raw); text != "" {
		return onChunk(text)
	}
	return nil
}

// readEvents passes the text of every non-special token event to onChunk.
func readEvents(r io.Reader, onChunk func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		event := gjson.Parse(payload)
		if msg := event.Get("error"); msg.Exists() {
			return fmt.Errorf("llm: %s", msg.String())
		}
		if event.Get("token.special").Bool() {
			continue
		}
		if text := event.Get("token.text").String(); text != "" {
			if err := onChunk(text); err != nil {
				return err
			}
		}
	}
	return errors.Wrap(scanner.Err(), "reading llm stream")
}

// generatedText extracts the answer of a non-streamed response, falling back to the raw body.
func generatedText(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return strings.TrimSpace(string(raw))
	}
	for _, path := range []string{"0.generated_text", "generated_text"} {
		if text := gjson.GetBytes(raw, path); text.Exists() {
			return text.String()
		}
	}
	return strings.TrimSpace(string(raw))
}

func upstreamError(status int, raw []byte) error {
	msg := http.StatusText(status)
	if gjson.ValidBytes(raw) {
		if e := gjson.GetBytes(raw, "error"); e.Exists() {
			msg = e.String()
		}
	}
	return fmt.Errorf("llm: upstream returned %d: %s", status, msg)
}
