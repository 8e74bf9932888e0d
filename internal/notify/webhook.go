package notify

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Mavwarf/anchorpatch/internal/config"
)

// Headers set on every report so receivers can route or dedupe without
// parsing the body.
const (
	HeaderRunID   = "X-Anchorpatch-Run"
	HeaderOutcome = "X-Anchorpatch-Outcome"
)

var client = &http.Client{Timeout: 30 * time.Second}

// SendWebhook posts the run report body to w.URL. Configured headers are
// applied last and may override the defaults; their values go through
// os.ExpandEnv so tokens can live in the environment.
func SendWebhook(w config.Webhook, rep Report, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if rep.ID != "" {
		req.Header.Set(HeaderRunID, rep.ID)
	}
	if rep.Outcome != "" {
		req.Header.Set(HeaderOutcome, rep.Outcome)
	}
	for k, v := range w.Headers {
		req.Header.Set(k, os.ExpandEnv(v))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post run %s: %w", rep.shortID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d for run %s: %s", resp.StatusCode, rep.shortID(), readSnippet(resp.Body))
	}
	return nil
}

// readSnippet reads up to 200 bytes from r for error messages.
func readSnippet(r io.Reader) string {
	buf := make([]byte, 200)
	n, _ := io.ReadFull(r, buf)
	if n == 0 {
		return "(empty body)"
	}
	s := string(buf[:n])
	if n == 200 {
		s += "..."
	}
	return s
}
