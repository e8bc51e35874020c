package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"registrar/pkg/platform/sentinel"
)

// SubmitResult carries the identifiers the store assigned to resources
// submitted with a temp id, keyed by resource type.
type SubmitResult struct {
	AssignedIDs map[string]string
}

// Client is the port to the external persistence store.
type Client interface {
	SubmitBundle(ctx context.Context, bundle Bundle) (SubmitResult, error)
}

// HTTPClient talks to the store over its bundle endpoint. Submissions
// are retried with backoff; on exhaustion the caller sees
// sentinel.ErrUnavailable wrapped with the last failure.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	retries int
	backoff time.Duration
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		retries: 3,
		backoff: 250 * time.Millisecond,
	}
}

type wireEntry struct {
	FullURL  string         `json:"fullUrl"`
	Resource map[string]any `json:"resource"`
}

type wireBundle struct {
	ResourceType string      `json:"resourceType"`
	Type         string      `json:"type"`
	Entry        []wireEntry `json:"entry"`
}

type wireResponse struct {
	Entry []struct {
		FullURL  string `json:"fullUrl"`
		Response struct {
			Location string `json:"location"`
		} `json:"response"`
		Resource struct {
			ResourceType string `json:"resourceType"`
			ID           string `json:"id"`
		} `json:"resource"`
	} `json:"entry"`
}

func (c *HTTPClient) SubmitBundle(ctx context.Context, bundle Bundle) (SubmitResult, error) {
	payload, err := json.Marshal(toWire(bundle))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("marshal bundle: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return SubmitResult{}, ctx.Err()
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		result, err := c.submitOnce(ctx, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return SubmitResult{}, fmt.Errorf("submit bundle: %w: %w", sentinel.ErrUnavailable, lastErr)
}

func (c *HTTPClient) submitOnce(ctx context.Context, payload []byte) (SubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fhir", bytes.NewReader(payload))
	if err != nil {
		return SubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/fhir+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return SubmitResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SubmitResult{}, fmt.Errorf("store returned status %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return SubmitResult{}, fmt.Errorf("decode store response: %w", err)
	}

	assigned := make(map[string]string)
	for _, entry := range wire.Entry {
		if entry.Resource.ID != "" && entry.Resource.ResourceType != "" {
			assigned[entry.Resource.ResourceType] = entry.Resource.ID
		}
	}
	return SubmitResult{AssignedIDs: assigned}, nil
}

func toWire(bundle Bundle) wireBundle {
	entries := make([]wireEntry, len(bundle.Entries))
	for i, entry := range bundle.Entries {
		resource := map[string]any{
			"resourceType": entry.Resource.ResourceType,
		}
		if entry.Resource.ID != "" {
			resource["id"] = entry.Resource.ID
		}
		for key, value := range entry.Resource.Body {
			resource[key] = value
		}
		entries[i] = wireEntry{FullURL: entry.FullURL, Resource: resource}
	}
	return wireBundle{ResourceType: "Bundle", Type: bundle.Type, Entry: entries}
}
