package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RemoteBackend stores entries in an object store exposed over HTTP
// (GET/PUT by key). Used inside automated pipelines where local state is
// discarded between runs.
type RemoteBackend struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewRemoteBackend creates a backend for the given object-store base URL.
func NewRemoteBackend(baseURL string) *RemoteBackend {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil
	return &RemoteBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (b *RemoteBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/"+key, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("cache store returned %s", resp.Status)
	}
}

func (b *RemoteBackend) Put(ctx context.Context, key string, data []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, b.baseURL+"/"+key, data)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("cache store returned %s", resp.Status)
	}
	return nil
}
