package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/notify"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/rowsource"
	"go-stock-ledger/internal/ws"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Tables scanned when the source is a foreign SQLite database.
var kindTables = map[model.FileKind]string{
	model.FileKindStock: "stock",
	model.FileKindSales: "sales",
}

// ImportService drives an uploaded batch through its lifecycle:
// pending -> processing -> completed | failed. Row-level problems leave the
// batch completed with a summarized message; engine-level failures mark it
// failed with the error. A terminal batch is never reprocessed.
type ImportService interface {
	Submit(ownerID uuid.UUID, kind model.FileKind, mode model.ImportMode, fileName, filePath string, window time.Duration) (*model.UploadedFile, error)
	Process(batchID uuid.UUID) (*Report, error)
	Status(ownerID, batchID uuid.UUID) (*model.UploadedFile, error)
	Recent(ownerID uuid.UUID, limit int) ([]model.UploadedFile, error)
	ProcessPending() (int, error)
}

type importService struct {
	uploadRepo    repository.UploadRepository
	reconciler    ReconcileService
	defaultWindow time.Duration
	log           *logrus.Logger
	wsHub         *ws.Hub
	notifier      notify.Notifier
}

func NewImportService(uploadRepo repository.UploadRepository, reconciler ReconcileService, defaultWindow time.Duration, log *logrus.Logger, hub *ws.Hub, notifier notify.Notifier) ImportService {
	return &importService{
		uploadRepo:    uploadRepo,
		reconciler:    reconciler,
		defaultWindow: defaultWindow,
		log:           log,
		wsHub:         hub,
		notifier:      notifier,
	}
}

func (s *importService) Submit(ownerID uuid.UUID, kind model.FileKind, mode model.ImportMode, fileName, filePath string, window time.Duration) (*model.UploadedFile, error) {
	if _, ok := kindTables[kind]; !ok {
		return nil, ErrUnknownKind
	}
	if err := validateKindMode(kind, mode); err != nil {
		return nil, err
	}

	upload := &model.UploadedFile{
		UserID:     ownerID,
		FileName:   fileName,
		FilePath:   filePath,
		Kind:       kind,
		Mode:       mode,
		SyncWindow: int64(window / time.Second),
		Status:     model.StatusPending,
		UploadedAt: time.Now(),
	}
	if err := s.uploadRepo.Create(upload); err != nil {
		return nil, err
	}
	return upload, nil
}

func validateKindMode(kind model.FileKind, mode model.ImportMode) error {
	switch mode {
	case model.ModeMerge:
		return nil
	case model.ModeReplaceAll:
		if kind != model.FileKindStock {
			return fmt.Errorf("mode %s only applies to stock batches", mode)
		}
	case model.ModeReplaceWindow:
		if kind != model.FileKindSales {
			return fmt.Errorf("mode %s only applies to sales batches", mode)
		}
	default:
		return fmt.Errorf("unknown import mode: %s", mode)
	}
	return nil
}

func (s *importService) Process(batchID uuid.UUID) (*Report, error) {
	// 1. Load the batch and guard the state machine
	batch, err := s.uploadRepo.FindByID(batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	if batch.Status == model.StatusProcessing {
		return nil, ErrBatchAlreadyProcessing
	}
	if batch.IsTerminal() {
		return nil, ErrBatchTerminal
	}

	// 2. Claim the batch. The conditional update is the actual guard; the
	// reads above only exist to return precise errors. Under a concurrent
	// worker exactly one claim succeeds.
	claimed, err := s.uploadRepo.MarkProcessing(batch.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrBatchAlreadyProcessing
	}
	batch.Status = model.StatusProcessing

	// 3. Run the reconciliation engine
	report, err := s.run(batch)
	if err != nil {
		msg := err.Error()
		batch.Status = model.StatusFailed
		batch.ErrorMessage = &msg
		// RecordsProcessed keeps its last known value
		if uerr := s.uploadRepo.Update(batch); uerr != nil {
			s.log.WithError(uerr).Error("failed to persist batch failure")
		}
		s.log.WithFields(logrus.Fields{
			"batch": batch.ID,
			"file":  batch.FileName,
		}).WithError(err).Error("batch processing failed")
		return nil, err
	}

	// 4. Finalize: row-level problems are non-fatal to the batch
	batch.Status = model.StatusCompleted
	batch.RecordsProcessed = report.RowsApplied
	batch.ErrorMessage = nil
	if len(report.Errors) > 0 {
		msg := summarizeRowErrors(report)
		batch.ErrorMessage = &msg
	}
	if err := s.uploadRepo.Update(batch); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"batch":   batch.ID,
		"file":    batch.FileName,
		"applied": report.RowsApplied,
		"skipped": report.RowsSkipped,
	}).Info("batch processed")

	// 5. Fire-and-forget notifications
	s.broadcastBatch(batch, report)
	if s.notifier != nil {
		s.notifier.BatchApplied(batch.UserID, batch.FileName, report.RowsApplied)
	}

	return report, nil
}

func (s *importService) run(batch *model.UploadedFile) (*Report, error) {
	src, err := rowsource.Open(batch.FilePath, kindTables[batch.Kind])
	if err != nil {
		return nil, err
	}
	defer src.Close()

	switch batch.Kind {
	case model.FileKindStock:
		if batch.Mode == model.ModeReplaceAll {
			return s.reconciler.ReplaceStock(batch.UserID, src)
		}
		return s.reconciler.MergeStock(batch.UserID, src)
	case model.FileKindSales:
		if batch.Mode == model.ModeReplaceWindow {
			window := batch.Window()
			if window <= 0 {
				window = s.defaultWindow
			}
			return s.reconciler.ReplaceSalesWindow(batch.UserID, src, window)
		}
		return s.reconciler.ApplySales(batch.UserID, src)
	default:
		return nil, ErrUnknownKind
	}
}

// summarizeRowErrors folds the report's row errors into one message small
// enough for the status column.
func summarizeRowErrors(report *Report) string {
	const maxListed = 5

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d rows skipped", report.RowsSkipped, report.RowsSeen)
	for i, rowErr := range report.Errors {
		if i == maxListed {
			fmt.Fprintf(&b, "; and %d more", len(report.Errors)-maxListed)
			break
		}
		fmt.Fprintf(&b, "; row %d: %s", rowErr.RowIndex, rowErr.Reason)
	}
	return b.String()
}

func (s *importService) broadcastBatch(batch *model.UploadedFile, report *Report) {
	if s.wsHub == nil {
		return
	}
	go func() {
		payload := map[string]interface{}{
			"type":   "stock_update",
			"action": "batch_applied",
			"batch": map[string]interface{}{
				"id":           batch.ID,
				"file_name":    batch.FileName,
				"kind":         batch.Kind,
				"mode":         batch.Mode,
				"rows_applied": report.RowsApplied,
				"rows_skipped": report.RowsSkipped,
			},
		}
		msg, _ := json.Marshal(payload)
		s.wsHub.Broadcast <- msg
	}()
}

func (s *importService) Status(ownerID, batchID uuid.UUID) (*model.UploadedFile, error) {
	batch, err := s.uploadRepo.FindByID(batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	if batch.UserID != ownerID {
		return nil, ErrWrongOwner
	}
	return batch, nil
}

func (s *importService) Recent(ownerID uuid.UUID, limit int) ([]model.UploadedFile, error) {
	return s.uploadRepo.FindRecent(ownerID, limit)
}

// ProcessPending drains every pending batch, oldest first. Used by the
// process-uploads command.
func (s *importService) ProcessPending() (int, error) {
	pending, err := s.uploadRepo.FindPending()
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range pending {
		if _, err := s.Process(pending[i].ID); err != nil {
			// Already persisted as failed; keep draining the queue
			continue
		}
		processed++
	}
	return processed, nil
}
