package webhook

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/msadik/chatrelay/internal/models"
	"github.com/msadik/chatrelay/internal/storage"
)

// Ledger persists delivery records. Persistence is best-effort: when the
// store is unreachable the failure is logged and the in-flight state machine
// keeps running in memory, so a broken database never stops deliveries.
type Ledger struct {
	store storage.Storage
	log   zerolog.Logger
}

func NewLedger(store storage.Storage, log zerolog.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

func (l *Ledger) Create(ctx context.Context, rec *models.DeliveryRecord) {
	if err := l.store.CreateDeliveryRecord(ctx, rec); err != nil {
		l.log.Warn().Err(err).Str("record_id", rec.ID).Msg("store unavailable, continuing without persistence")
	}
}

func (l *Ledger) Update(ctx context.Context, rec *models.DeliveryRecord) {
	if err := l.store.UpdateDeliveryRecord(ctx, rec); err != nil {
		l.log.Warn().Err(err).Str("record_id", rec.ID).Msg("store unavailable, continuing without persistence")
	}
}

func (l *Ledger) Get(ctx context.Context, id string) (*models.DeliveryRecord, error) {
	return l.store.GetDeliveryRecord(ctx, id)
}
