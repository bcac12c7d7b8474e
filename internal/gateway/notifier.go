package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier tells the external notification service that a payee received
// money. Delivery is best-effort: a false return is logged by the caller
// and never alters a committed transfer.
type Notifier struct {
	url    string
	client *http.Client
	log    *zap.SugaredLogger
}

func NewNotifier(url string, timeout time.Duration, log *zap.SugaredLogger) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

type notifyPayload struct {
	PayeeID string `json:"payee_id"`
	Amount  string `json:"amount"`
}

// Notify posts the payee id and amount. The service signals delivery with
// {"message": true}; some deployments of it answer with the string "true",
// both are accepted. Anything else, including transport errors, counts as
// not delivered.
func (n *Notifier) Notify(ctx context.Context, payeeID uuid.UUID, amount decimal.Decimal) bool {
	data, err := json.Marshal(notifyPayload{PayeeID: payeeID.String(), Amount: amount.StringFixed(2)})
	if err != nil {
		n.log.Errorf("notifier: marshal payload: %v", err)
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		n.log.Errorf("notifier: build request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warnf("notifier unreachable: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.log.Warnf("notifier returned status %d", resp.StatusCode)
		return false
	}
	var body struct {
		Message interface{} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		n.log.Warnf("notifier: decode response: %v", err)
		return false
	}
	switch v := body.Message.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}
