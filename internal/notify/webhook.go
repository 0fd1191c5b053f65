package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier announces a successfully applied batch to an interested remote.
// Delivery is fire-and-forget: a failed notification never fails the batch.
type Notifier interface {
	BatchApplied(ownerID uuid.UUID, fileName string, rowsApplied int)
}

// Webhook POSTs a small JSON payload to a configured URL. An empty URL
// disables delivery entirely.
type Webhook struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

func NewWebhook(url string, log *logrus.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (w *Webhook) BatchApplied(ownerID uuid.UUID, fileName string, rowsApplied int) {
	if w.url == "" {
		return
	}

	go func() {
		payload, _ := json.Marshal(map[string]interface{}{
			"event":        "batch_applied",
			"owner_id":     ownerID,
			"file_name":    fileName,
			"rows_applied": rowsApplied,
			"applied_at":   time.Now().UTC(),
		})

		resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(payload))
		if err != nil {
			w.log.WithError(err).Warn("sync webhook delivery failed")
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			w.log.WithField("status", resp.StatusCode).Warn("sync webhook rejected")
		}
	}()
}
