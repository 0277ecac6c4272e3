package webhook

import (
	"context"
	"fmt"
	"net/http"

	"github.com/IgorGrieder/minimizurl/internal/events"
	"github.com/IgorGrieder/minimizurl/pkg/httpclient"
)

const (
	TokenHeader     = "X-Webhook-Token"
	EventTypeHeader = "X-Event-Type"
)

type poster interface {
	PostJSON(ctx context.Context, url string, body any, headers map[string]string) (*http.Response, error)
}

// ClickSink posts each click event to an external analytics endpoint.
type ClickSink struct {
	client poster
	url    string
	token  string
}

func NewClickSink(client *httpclient.Client, url, token string) *ClickSink {
	return &ClickSink{client: client, url: url, token: token}
}

func (s *ClickSink) Save(ctx context.Context, ev events.ClickRecorded) error {
	headers := map[string]string{EventTypeHeader: events.ClickRecordedType}
	if s.token != "" {
		headers[TokenHeader] = s.token
	}

	resp, err := s.client.PostJSON(ctx, s.url, ev, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook rejected click event: %s", resp.Status)
	}
	return nil
}
