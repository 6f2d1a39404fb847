package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/accueilpro/accueilpro/pkg/events"
	"github.com/accueilpro/accueilpro/pkg/logger"
)

// Changes follows the visitors change stream, calling fn for each event,
// until ctx is cancelled or the server closes the stream. It returns nil on
// cancellation.
func (c *Client) Changes(ctx context.Context, accessToken string, fn func(events.ChangeEvent)) error {
	return c.changes(ctx, accessToken, nil, fn)
}

// changes is Changes with a hook run once the server has accepted the stream.
func (c *Client) changes(ctx context.Context, accessToken string, onOpen func(), fn func(events.ChangeEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.visitorsURL+"/visitors/changes", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to open change stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if onOpen != nil {
		onOpen()
	}

	scanner := bufio.NewScanner(resp.Body)
	var name, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name == "change" && data != "" {
				var ev events.ChangeEvent
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					logger.WarnContext(ctx, "Ignoring malformed change event", "error", err)
				} else {
					fn(ev)
				}
			}
			name, data = "", ""
		case strings.HasPrefix(line, ":"):
			// comment or heartbeat
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("change stream read failed: %w", err)
	}
	return nil
}
