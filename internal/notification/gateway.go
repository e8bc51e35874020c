package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	dErrors "registrar/pkg/domain-errors"
)

// GatewayNotifier posts messages to an external notification gateway
// which owns channel selection (SMS, email) and templating.
type GatewayNotifier struct {
	baseURL string
	client  *http.Client
}

func NewGatewayNotifier(baseURL string) *GatewayNotifier {
	return &GatewayNotifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *GatewayNotifier) Notify(ctx context.Context, msg Message) error {
	body, err := json.Marshal(map[string]string{
		"recordId":   msg.RecordID.String(),
		"event":      string(msg.Event),
		"trackingId": msg.TrackingID,
		"kind":       string(msg.Kind),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marshal notification")
	}

	url := fmt.Sprintf("%s/notifications", n.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "notification gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return dErrors.Newf(dErrors.CodeUpstreamUnavailable, "notification gateway returned %d", resp.StatusCode)
	}
	return nil
}
