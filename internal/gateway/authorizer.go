package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// grantMessage is the exact payload value the external authorizer returns
// when a transfer is approved.
const grantMessage = "Autorizado"

// Authorizer asks the external decision service whether a transfer may
// proceed. The policy is fail-closed: a non-200 status, an unexpected
// payload, a network error or a timeout all count as a denial. Transport
// errors are logged here and never surface to the caller.
type Authorizer struct {
	url    string
	client *http.Client
	log    *zap.SugaredLogger
}

func NewAuthorizer(url string, timeout time.Duration, log *zap.SugaredLogger) *Authorizer {
	return &Authorizer{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Authorize performs a single attempt against the decision endpoint.
func (a *Authorizer) Authorize(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		a.log.Errorf("authorizer: build request: %v", err)
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Warnf("authorizer unreachable, denying: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.log.Warnf("authorizer returned status %d, denying", resp.StatusCode)
		return false
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		a.log.Warnf("authorizer: decode response: %v", err)
		return false
	}
	return body.Message == grantMessage
}
