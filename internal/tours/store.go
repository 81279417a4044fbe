package tours

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrNoRowsAffected signals that a write matched zero rows without a
	// database error. The store cannot tell a missing row apart from a row
	// the caller does not own, so callers must surface it as a permission
	// problem rather than a transport failure.
	ErrNoRowsAffected = errors.New("tours: no rows affected")
	noOpLogger        = zap.NewNop()
)

// StoreError carries a stable operation.reason code alongside the cause.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code for the failure.
func (e *StoreError) Code() string {
	return e.code
}

const (
	opStoreNew    = "tours.store.new"
	opListTours   = "tours.list_tours"
	opCreateTour  = "tours.create_tour"
	opUpdateTour  = "tours.update_tour"
	opDeleteTour  = "tours.delete_tour"
	opListStops   = "tours.list_stops"
	opCreateStop  = "tours.create_stop"
	opUpdateStop  = "tours.update_stop"
	opDeleteStop  = "tours.delete_stop"
	opBuildReport = "tours.report_dataset"
)

const (
	reasonInvalidInput   = "invalid_input"
	reasonQueryFailed    = "query_failed"
	reasonInsertFailed   = "insert_failed"
	reasonUpdateFailed   = "update_failed"
	reasonDeleteFailed   = "delete_failed"
	reasonRowNotOwned    = "row_not_owned"
	reasonTourNotFound   = "tour_not_found"
	reasonIDGeneration   = "id_generation_failed"
	reasonMissingOwnerID = "missing_owner_id"
)

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}

// StoreConfig describes the dependencies required by the authoritative store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store is the authoritative persistence service for tours and stops. Writes
// are owner-scoped: a mutation that matches no rows reports ErrNoRowsAffected
// instead of failing, mirroring row-level permission enforcement.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewStore constructs the store after validating its dependencies.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newStoreError(opStoreNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newStoreError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ListTours returns every registered tour, oldest first.
func (s *Store) ListTours(ctx context.Context) ([]Tour, error) {
	var result []Tour
	if err := s.db.WithContext(ctx).
		Order("created_at_s ASC, id ASC").
		Find(&result).Error; err != nil {
		s.logError(opListTours, reasonQueryFailed, err)
		return nil, newStoreError(opListTours, reasonQueryFailed, err)
	}
	return result, nil
}

// CreateTour inserts a new tour owned by ownerID and returns the stored row.
func (s *Store) CreateTour(ctx context.Context, ownerID UserID, draft TourDraft) (Tour, error) {
	if ownerID == "" {
		return Tour{}, newStoreError(opCreateTour, reasonMissingOwnerID, ErrInvalidUserID)
	}
	if err := draft.Validate(); err != nil {
		return Tour{}, newStoreError(opCreateTour, reasonInvalidInput, err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateTour, reasonIDGeneration, err)
		return Tour{}, newStoreError(opCreateTour, reasonIDGeneration, err)
	}

	tour := Tour{
		ID:               id,
		Title:            draft.Title,
		Description:      draft.Description,
		City:             draft.City,
		Language:         draft.Language,
		CreatedBy:        ownerID.String(),
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&tour).Error; err != nil {
		s.logError(opCreateTour, reasonInsertFailed, err, zap.String("tour_id", id))
		return Tour{}, newStoreError(opCreateTour, reasonInsertFailed, err)
	}
	return tour, nil
}

// UpdateTour applies the patch to a tour the caller owns and returns the
// updated row. Zero matched rows reports ErrNoRowsAffected.
func (s *Store) UpdateTour(ctx context.Context, ownerID UserID, id TourID, patch TourPatch) (Tour, error) {
	if ownerID == "" || id == "" {
		return Tour{}, newStoreError(opUpdateTour, reasonInvalidInput, errors.Join(ErrInvalidUserID, ErrInvalidTourID))
	}
	if err := patch.Validate(); err != nil {
		return Tour{}, newStoreError(opUpdateTour, reasonInvalidInput, err)
	}

	var updated Tour
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Tour{}).
			Where("id = ? AND created_by = ?", id.String(), ownerID.String()).
			Updates(map[string]interface{}{
				"title":       patch.Title,
				"description": patch.Description,
			})
		if result.Error != nil {
			s.logError(opUpdateTour, reasonUpdateFailed, result.Error, zap.String("tour_id", id.String()))
			return newStoreError(opUpdateTour, reasonUpdateFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return newStoreError(opUpdateTour, reasonRowNotOwned, ErrNoRowsAffected)
		}
		if err := tx.Where("id = ?", id.String()).Take(&updated).Error; err != nil {
			s.logError(opUpdateTour, reasonQueryFailed, err, zap.String("tour_id", id.String()))
			return newStoreError(opUpdateTour, reasonQueryFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return Tour{}, txErr
	}
	return updated, nil
}

// DeleteTour removes a tour the caller owns along with its stops. Zero
// matched rows reports ErrNoRowsAffected and leaves the stops untouched.
func (s *Store) DeleteTour(ctx context.Context, ownerID UserID, id TourID) error {
	if ownerID == "" || id == "" {
		return newStoreError(opDeleteTour, reasonInvalidInput, errors.Join(ErrInvalidUserID, ErrInvalidTourID))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND created_by = ?", id.String(), ownerID.String()).Delete(&Tour{})
		if result.Error != nil {
			s.logError(opDeleteTour, reasonDeleteFailed, result.Error, zap.String("tour_id", id.String()))
			return newStoreError(opDeleteTour, reasonDeleteFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return newStoreError(opDeleteTour, reasonRowNotOwned, ErrNoRowsAffected)
		}
		if err := tx.Where("tour_id = ?", id.String()).Delete(&Stop{}).Error; err != nil {
			s.logError(opDeleteTour, reasonDeleteFailed, err, zap.String("tour_id", id.String()))
			return newStoreError(opDeleteTour, reasonDeleteFailed, err)
		}
		return nil
	})
}

// ListStops returns the stops of a tour sorted ascending by stop order.
func (s *Store) ListStops(ctx context.Context, tourID TourID) ([]Stop, error) {
	if tourID == "" {
		return nil, newStoreError(opListStops, reasonInvalidInput, ErrInvalidTourID)
	}

	var result []Stop
	if err := s.db.WithContext(ctx).
		Where("tour_id = ?", tourID.String()).
		Order("stop_order ASC").
		Find(&result).Error; err != nil {
		s.logError(opListStops, reasonQueryFailed, err, zap.String("tour_id", tourID.String()))
		return nil, newStoreError(opListStops, reasonQueryFailed, err)
	}
	return result, nil
}

// CreateStop appends a stop to a tour the caller owns, assigning
// stop_order = count + 1 inside the insert transaction, and returns the
// stored row. An ownership mismatch reports ErrNoRowsAffected. Existing
// orders are never renumbered, so deletions leave gaps.
func (s *Store) CreateStop(ctx context.Context, ownerID UserID, draft StopDraft) (Stop, error) {
	if ownerID == "" {
		return Stop{}, newStoreError(opCreateStop, reasonMissingOwnerID, ErrInvalidUserID)
	}
	if err := draft.Validate(); err != nil {
		return Stop{}, newStoreError(opCreateStop, reasonInvalidInput, err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateStop, reasonIDGeneration, err)
		return Stop{}, newStoreError(opCreateStop, reasonIDGeneration, err)
	}

	var stored Stop
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tour Tour
		err := tx.Where("id = ?", draft.TourID.String()).Take(&tour).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newStoreError(opCreateStop, reasonTourNotFound, err)
		}
		if err != nil {
			s.logError(opCreateStop, reasonQueryFailed, err, zap.String("tour_id", draft.TourID.String()))
			return newStoreError(opCreateStop, reasonQueryFailed, err)
		}
		if tour.CreatedBy != ownerID.String() {
			return newStoreError(opCreateStop, reasonRowNotOwned, ErrNoRowsAffected)
		}

		var count int64
		if err := tx.Model(&Stop{}).Where("tour_id = ?", draft.TourID.String()).Count(&count).Error; err != nil {
			s.logError(opCreateStop, reasonQueryFailed, err, zap.String("tour_id", draft.TourID.String()))
			return newStoreError(opCreateStop, reasonQueryFailed, err)
		}

		stored = Stop{
			ID:          id,
			TourID:      draft.TourID.String(),
			Title:       draft.Title,
			Description: draft.Description,
			Latitude:    draft.Coordinate.Latitude,
			Longitude:   draft.Coordinate.Longitude,
			StopOrder:   int(count) + 1,
		}
		if err := tx.Create(&stored).Error; err != nil {
			s.logError(opCreateStop, reasonInsertFailed, err, zap.String("stop_id", id))
			return newStoreError(opCreateStop, reasonInsertFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return Stop{}, txErr
	}
	return stored, nil
}

// UpdateStop applies the patch to a stop whose tour the caller owns and
// returns the updated row. Zero matched rows reports ErrNoRowsAffected.
func (s *Store) UpdateStop(ctx context.Context, ownerID UserID, id StopID, patch StopPatch) (Stop, error) {
	if ownerID == "" || id == "" {
		return Stop{}, newStoreError(opUpdateStop, reasonInvalidInput, errors.Join(ErrInvalidUserID, ErrInvalidStopID))
	}
	if err := patch.Validate(); err != nil {
		return Stop{}, newStoreError(opUpdateStop, reasonInvalidInput, err)
	}

	var updated Stop
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownedTours := tx.Model(&Tour{}).Select("id").Where("created_by = ?", ownerID.String())
		result := tx.Model(&Stop{}).
			Where("id = ? AND tour_id IN (?)", id.String(), ownedTours).
			Updates(map[string]interface{}{
				"title":       patch.Title,
				"description": patch.Description,
			})
		if result.Error != nil {
			s.logError(opUpdateStop, reasonUpdateFailed, result.Error, zap.String("stop_id", id.String()))
			return newStoreError(opUpdateStop, reasonUpdateFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return newStoreError(opUpdateStop, reasonRowNotOwned, ErrNoRowsAffected)
		}
		if err := tx.Where("id = ?", id.String()).Take(&updated).Error; err != nil {
			s.logError(opUpdateStop, reasonQueryFailed, err, zap.String("stop_id", id.String()))
			return newStoreError(opUpdateStop, reasonQueryFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return Stop{}, txErr
	}
	return updated, nil
}

// DeleteStop removes a stop whose tour the caller owns and returns the
// removed row. Zero matched rows reports ErrNoRowsAffected. Remaining stop
// orders are left as they are.
func (s *Store) DeleteStop(ctx context.Context, ownerID UserID, id StopID) (Stop, error) {
	if ownerID == "" || id == "" {
		return Stop{}, newStoreError(opDeleteStop, reasonInvalidInput, errors.Join(ErrInvalidUserID, ErrInvalidStopID))
	}

	var removed Stop
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownedTours := tx.Model(&Tour{}).Select("id").Where("created_by = ?", ownerID.String())
		err := tx.Where("id = ? AND tour_id IN (?)", id.String(), ownedTours).Take(&removed).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newStoreError(opDeleteStop, reasonRowNotOwned, ErrNoRowsAffected)
		}
		if err != nil {
			s.logError(opDeleteStop, reasonQueryFailed, err, zap.String("stop_id", id.String()))
			return newStoreError(opDeleteStop, reasonQueryFailed, err)
		}
		if err := tx.Where("id = ?", id.String()).Delete(&Stop{}).Error; err != nil {
			s.logError(opDeleteStop, reasonDeleteFailed, err, zap.String("stop_id", id.String()))
			return newStoreError(opDeleteStop, reasonDeleteFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return Stop{}, txErr
	}
	return removed, nil
}

// ReportDataset bundles every tour with its ordered stops for the report
// document builder.
type ReportDataset struct {
	Tours []Tour
	Stops map[string][]Stop
}

// BuildReportDataset loads all tours and all stops grouped by tour, stops
// sorted ascending by stop order.
func (s *Store) BuildReportDataset(ctx context.Context) (ReportDataset, error) {
	toursList, err := s.ListTours(ctx)
	if err != nil {
		return ReportDataset{}, err
	}

	var allStops []Stop
	if err := s.db.WithContext(ctx).
		Order("tour_id ASC, stop_order ASC").
		Find(&allStops).Error; err != nil {
		s.logError(opBuildReport, reasonQueryFailed, err)
		return ReportDataset{}, newStoreError(opBuildReport, reasonQueryFailed, err)
	}

	grouped := make(map[string][]Stop, len(toursList))
	for _, stop := range allStops {
		grouped[stop.TourID] = append(grouped[stop.TourID], stop)
	}
	return ReportDataset{Tours: toursList, Stops: grouped}, nil
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("tour store error", attrs...)
}
