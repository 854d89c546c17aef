package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mario-guerra/translation-service/internal/domain/entity"
	"github.com/mario-guerra/translation-service/internal/domain/port"
)

// Client talks to the speech gateway's REST surface. One endpoint
// transcribes and translates an uploaded audio file, another
// synthesizes speech from text.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     *zap.Logger
}

type ClientConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

func (c *Client) TranslateAudio(ctx context.Context, audioPath, langIn, langOut string) (*entity.TranslationResult, error) {
	audio, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer audio.Close()

	reqURL := fmt.Sprintf("%s/speech/translate?from=%s&to=%s",
		c.endpoint, url.QueryEscape(langIn), url.QueryEscape(langOut))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, audio)
	if err != nil {
		return nil, fmt.Errorf("build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &port.ProviderError{
			Class:   port.ErrorClassTransient,
			Message: "translate request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	var result entity.TranslationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &port.ProviderError{
			Class:   port.ErrorClassTransient,
			Message: "decode translate response",
			Err:     err,
		}
	}

	c.logger.Debug("translation completed",
		zap.Int("transcription_len", len(result.Transcription)),
		zap.Int("translation_len", len(result.Translation)),
	)
	return &result, nil
}

func (c *Client) SynthesizeAudio(ctx context.Context, text, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/speech/synthesize", strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("build synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Accept", "audio/wav")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &port.ProviderError{
			Class:   port.ErrorClassTransient,
			Message: "synthesize request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create synthesized audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write synthesized audio: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	}
}

// classifyStatus maps an HTTP status to an error class: auth and other
// client errors are permanent, timeouts / throttling / server errors
// are transient.
func classifyStatus(resp *http.Response) *port.ProviderError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(bytes.TrimSpace(body)))
	if msg == "" {
		msg = resp.Status
	}

	class := port.ErrorClassPermanent
	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		class = port.ErrorClassTransient
	}

	return &port.ProviderError{
		Class:      class,
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}
