package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const sendTimeout = 10 * time.Second

// postJSON marshals v and POSTs it to endpoint. Any non-2xx status is an
// error carrying up to 512 bytes of the response body. Transport errors drop
// the URL, which may embed credentials.
func postJSON(ctx context.Context, client *http.Client, endpoint string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return uerr.Err
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(snippet) > 0 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
