package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/flemzord/chatmem/internal/provider"
)

// mapError converts an SDK error into the provider sentinels. Network
// failures count as the provider being down. Context errors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if errors.As(err, &apiErr) {
		typ, msg := errorPayload(apiErr.RawJSON())
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		contextLength := typ == "invalid_request_error" && isContextLengthMessage(msg)
		return provider.StatusError("anthropic", apiErr.StatusCode, msg, contextLength)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("anthropic: %w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("anthropic: %w", err)
}

// errorPayload extracts the error type and message of an API error body.
// Unparseable bodies yield the raw text as message.
func errorPayload(raw string) (typ, msg string) {
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return "", strings.TrimSpace(raw)
	}
	return body.Error.Type, body.Error.Message
}

var contextLengthHints = []string{"context length", "too many tokens", "token limit", "prompt is too long"}

func isContextLengthMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, hint := range contextLengthHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
