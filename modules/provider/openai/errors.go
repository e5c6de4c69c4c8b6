package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/flemzord/chatmem/internal/provider"
)

// mapError maps a go-openai error onto the provider sentinels. Context
// errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		return mapStatus(apiErr.HTTPStatusCode, apiErr.Message, code)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		msg := "request failed"
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return mapStatus(reqErr.HTTPStatusCode, msg, "")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("openai: %w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("openai: %w", err)
}

func mapStatus(status int, msg, code string) error {
	contextLength := code == "context_length_exceeded" ||
		strings.Contains(strings.ToLower(msg), "context_length")
	return provider.StatusError("openai", status, msg, contextLength)
}
