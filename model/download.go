package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// download fetches url into dest. The body goes to a temp file in dest's
// directory so the final rename is atomic and replaces any existing file.
// progress receives bytes written and the declared total (-1 if unknown).
func download(ctx context.Context, client *http.Client, url, dest, wantSHA256 string, progress func(written, total int64)) (FetchMetrics, error) {
	var m FetchMetrics
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return m, fmt.Errorf("create model dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".model-*.part")
	if err != nil {
		return m, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	req, err := http.NewRequestWithContext(traceFetch(ctx, &m), http.MethodGet, url, nil)
	if err != nil {
		tmpFile.Close()
		return m, fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		tmpFile.Close()
		return m, fmt.Errorf("download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tmpFile.Close()
		return m, fmt.Errorf("download model: %s", resp.Status)
	}

	hasher := sha256.New()
	src := &progressReader{r: resp.Body, total: resp.ContentLength, fn: progress}
	bodyStart := time.Now()
	n, err := io.Copy(io.MultiWriter(tmpFile, hasher), src)
	m.Bytes = n
	m.Body = time.Since(bodyStart)
	m.Total = time.Since(start)
	if err != nil {
		tmpFile.Close()
		return m, fmt.Errorf("write model: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return m, fmt.Errorf("write model: %w", err)
	}

	if wantSHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, wantSHA256) {
			return m, fmt.Errorf("checksum mismatch: got %s, want %s", got[:12], wantSHA256[:min(12, len(wantSHA256))])
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return m, fmt.Errorf("install model: %w", err)
	}
	return m, nil
}

type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    func(written, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.fn != nil {
			p.fn(p.read, p.total)
		}
	}
	return n, err
}
