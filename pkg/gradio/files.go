package gradio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// FileRef is a file value returned by an endpoint.
type FileRef struct {
	Path string // path on the app's filesystem
	URL  string // download URL, when the app provides one
}

// AsFile interprets an output value as a file. Gradio 4 returns FileData
// objects with path and url; Gradio 3 returns {"name": ...} or a bare path.
func AsFile(v any) (FileRef, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return FileRef{}, false
		}
		return FileRef{Path: t}, true
	case map[string]any:
		var ref FileRef
		if s, ok := t["path"].(string); ok {
			ref.Path = s
		} else if s, ok := t["name"].(string); ok {
			ref.Path = s
		}
		if s, ok := t["url"].(string); ok {
			ref.URL = s
		}
		return ref, ref.Path != "" || ref.URL != ""
	}
	return FileRef{}, false
}

// Download fetches a returned file into dest, creating parent directories.
func (c *Client) Download(ctx context.Context, ref FileRef, dest string) error {
	src := ref.URL
	if src == "" {
		src = c.endpointURL(c.apiPrefix(ctx), "file="+ref.Path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("gradio: create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("gradio: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("gradio: create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return unavailable(fmt.Errorf("download %s: %w", src, err))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("gradio: write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("gradio: write file: %w", err)
	}

	c.logger.Debug("downloaded file", "src", src, "dest", dest)
	return nil
}
