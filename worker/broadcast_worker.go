package worker

import (
	"context"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"zapflow/core"
	"zapflow/models"
	"zapflow/store"
	"zapflow/utils"
)

const defaultPollInterval = 30 * time.Second

// BroadcastWorker delivers scheduled broadcast campaigns. Each
// recipient send goes through the sync core's outbound path, so every
// delivered message is recorded and fanned out like an operator send.
type BroadcastWorker struct {
	db       *gorm.DB
	core     *core.Core
	store    store.Store
	logger   *log.Logger
	interval time.Duration
}

func NewBroadcastWorker(db *gorm.DB, syncCore *core.Core, st store.Store, logger *log.Logger) *BroadcastWorker {
	return &BroadcastWorker{
		db:       db,
		core:     syncCore,
		store:    st,
		logger:   logger,
		interval: defaultPollInterval,
	}
}

// Start runs the polling loop until the context is cancelled.
func (w *BroadcastWorker) Start(ctx context.Context) {
	w.logger.Println("Broadcast worker started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Println("Broadcast worker stopped")
			return
		case <-ticker.C:
			w.processDue()
		}
	}
}

func (w *BroadcastWorker) processDue() {
	var due []models.Broadcast
	err := w.db.Where("status = ? AND scheduled_at <= ?", models.BroadcastStatusScheduled, time.Now()).
		Find(&due).Error
	if err != nil {
		w.logger.Printf("Failed to query due broadcasts: %v", err)
		return
	}

	for i := range due {
		w.run(&due[i])
	}
}

func (w *BroadcastWorker) run(broadcast *models.Broadcast) {
	// Claim the broadcast; a second worker instance that loses this
	// conditional update skips it.
	res := w.db.Model(broadcast).
		Where("status = ?", models.BroadcastStatusScheduled).
		Updates(map[string]interface{}{
			"status":     models.BroadcastStatusSending,
			"started_at": utils.Pointer(time.Now()),
		})
	if res.Error != nil || res.RowsAffected == 0 {
		return
	}

	labels := make([]string, 0, 4)
	for _, raw := range strings.Split(broadcast.TargetTags, ",") {
		if label := strings.TrimSpace(raw); label != "" {
			labels = append(labels, label)
		}
	}

	recipients, err := w.store.ContactsByTagLabels(labels)
	if err != nil {
		w.logger.Printf("Broadcast %d: failed to resolve recipients: %v", broadcast.ID, err)
		// Release the claim so the next poll retries; otherwise the
		// broadcast is stuck in sending forever.
		release := w.db.Model(broadcast).Update("status", models.BroadcastStatusScheduled)
		if release.Error != nil {
			w.logger.Printf("Broadcast %d: failed to release claim: %v", broadcast.ID, release.Error)
		}
		return
	}

	w.logger.Printf("Broadcast %d: sending to %d contacts", broadcast.ID, len(recipients))

	sent, failed := 0, 0
	for _, contact := range recipients {
		record := models.BroadcastRecipient{
			BroadcastID: broadcast.ID,
			ContactID:   contact.ID,
			Status:      "sent",
		}
		if _, err := w.core.RecordOutboundMessage(contact.ID, broadcast.Message, "", ""); err != nil {
			w.logger.Printf("Broadcast %d: send to %s failed: %v", broadcast.ID, contact.ID, err)
			record.Status = "failed"
			record.Error = err.Error()
			failed++
		} else {
			sent++
		}
		if err := w.db.Create(&record).Error; err != nil {
			w.logger.Printf("Broadcast %d: failed to record recipient: %v", broadcast.ID, err)
		}
	}

	err = w.db.Model(broadcast).Updates(map[string]interface{}{
		"status":       models.BroadcastStatusCompleted,
		"completed_at": utils.Pointer(time.Now()),
		"total_count":  len(recipients),
		"sent_count":   sent,
		"failed_count": failed,
	}).Error
	if err != nil {
		w.logger.Printf("Broadcast %d: failed to finalize: %v", broadcast.ID, err)
		return
	}
	w.logger.Printf("Broadcast %d: completed (%d sent, %d failed)", broadcast.ID, sent, failed)
}
