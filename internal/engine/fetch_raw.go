package engine

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// RemoteFile is a document downloaded from a direct link.
type RemoteFile struct {
	Data     []byte
	FileName string
	MIMEType string
}

// FetchFile downloads fileURL as raw bytes, for links that point straight at a
// PDF, spreadsheet or similar document rather than an HTML page.
// Status handling matches page fetches: 403 is Blocked, 404/410 NotFound.
func FetchFile(ctx context.Context, fileURL string) (file *RemoteFile, err error) {
	metrics.WebRequests.Add(1)
	defer func() {
		if err != nil {
			recordFailure(err)
		}
	}()

	if !IsHTTPURL(fileURL) {
		return nil, Unsupported("not an http(s) URL: " + fileURL)
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	client := cfg.HTTPClient
	if client == nil {
		client = newFetchClient()
	}
	resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("user-agent", RandomUserAgent())
		return client.Do(req)
	})
	if err != nil {
		if code := StatusCode(err); code != 0 {
			if f := statusFailure(code, fileURL); f != nil {
				err = f
			}
		}
		return nil, classifyFetchError(err, fileURL)
	}
	defer resp.Body.Close()

	data, err := readResponseBody(resp, fileURL)
	if err != nil {
		return nil, classifyFetchError(err, fileURL)
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return &RemoteFile{
		Data:     data,
		FileName: remoteFileName(resp.Header.Get("Content-Disposition"), fileURL),
		MIMEType: mt,
	}, nil
}

// remoteFileName prefers the Content-Disposition filename, then the last path segment.
func remoteFileName(disposition, fileURL string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return path.Base(name)
		}
	}
	if u, err := url.Parse(fileURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
	}
	return ""
}
