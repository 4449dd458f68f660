package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
	"github.com/poyrazK/zonekeeper/internal/infrastructure/metrics"
)

// RectifyService recomputes ordernames, auth flags and empty non-terminals.
type RectifyService struct {
	source   ports.ZoneDataSource
	keeper   ports.DNSSECKeeper
	hasher   ports.HashOracle
	locker   ports.ZoneLocker
	notifier ports.ChangeNotifier
	cfg      Config
	logger   *slog.Logger
}

// RectifyOption configures optional collaborators of a RectifyService.
type RectifyOption func(*RectifyService)

// WithLocker serializes rectify runs of the same zone through locker.
func WithLocker(locker ports.ZoneLocker) RectifyOption {
	return func(s *RectifyService) { s.locker = locker }
}

// WithNotifier announces committed runs through notifier.
func WithNotifier(notifier ports.ChangeNotifier) RectifyOption {
	return func(s *RectifyService) { s.notifier = notifier }
}

// NewRectifyService wires the rectify engine.
func NewRectifyService(source ports.ZoneDataSource, keeper ports.DNSSECKeeper, hasher ports.HashOracle, cfg Config, logger *slog.Logger, opts ...RectifyOption) *RectifyService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	s := &RectifyService{source: source, keeper: keeper, hasher: hasher, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.Rectifier = (*RectifyService)(nil)

// RectifyZone rebuilds the DNSSEC ordering metadata of one zone inside a
// single backend transaction. Presigned zones and zones without an SOA are
// refused before anything is written.
func (s *RectifyService) RectifyZone(ctx context.Context, zone domain.Name) (*domain.RectifyResult, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := s.logger.With("zone", zone, "run_id", runID)

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, zone)
		if err != nil {
			metrics.RectifyRuns.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("failed to lock zone %s: %w", zone, err)
		}
		defer unlock()
	}

	presigned, err := s.keeper.IsPresigned(ctx, zone)
	if err != nil {
		metrics.RectifyRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("rectify %s: %w", zone, err)
	}
	if presigned {
		log.Warn("Rectify presigned zone is not allowed/necessary")
		metrics.RectifyRuns.WithLabelValues("presigned").Inc()
		return nil, fmt.Errorf("rectify %s: %w", zone, domain.ErrPresigned)
	}

	soa, err := s.source.GetSOA(ctx, zone)
	if err != nil {
		metrics.RectifyRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("rectify %s: %w", zone, err)
	}

	result, err := s.rectify(ctx, log, soa, runID)
	if err != nil {
		metrics.RectifyRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.RectifyRuns.WithLabelValues("ok").Inc()
	metrics.RectifyDuration.WithLabelValues(result.Posture.String()).Observe(time.Since(start).Seconds())

	if s.notifier != nil {
		if errNotify := s.notifier.ZoneRectified(ctx, zone); errNotify != nil {
			log.Warn("failed to publish rectify notification", "error", errNotify)
		}
	}
	return result, nil
}

func (s *RectifyService) rectify(ctx context.Context, log *slog.Logger, soa *domain.SOAData, runID string) (*domain.RectifyResult, error) {
	apex := soa.Apex
	posture, err := LoadPosture(ctx, s.keeper, apex)
	if err != nil {
		return nil, fmt.Errorf("rectify %s: %w", apex, err)
	}

	records, err := s.source.ListRecords(ctx, soa.ZoneID, false)
	if err != nil {
		return nil, fmt.Errorf("rectify %s: failed to list records: %w", apex, err)
	}
	rc := newRectifyContext(apex, posture, records, s.cfg.MaxENTEntries)
	logPosture(log, rc)

	tx, err := s.source.BeginTransaction(ctx, soa.ZoneID, apex)
	if err != nil {
		return nil, fmt.Errorf("rectify %s: %w: %w", apex, domain.ErrTransaction, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if errRollback := tx.Rollback(); errRollback != nil {
			log.Error("failed to rollback rectify transaction", "error", errRollback)
		}
	}()

	if err := s.orderingPass(ctx, log, tx, rc, rc.qnames.sorted(), false); err != nil {
		return nil, fmt.Errorf("rectify %s: %w: %w", apex, domain.ErrTransaction, err)
	}

	insert, remove := rc.insert.sorted(), rc.remove.sorted()
	if rc.exhausted {
		log.Warn("Zone has too many empty non terminals, disabling ENT tracking", "max_ent_entries", s.cfg.MaxENTEntries)
		metrics.ENTBudgetExhausted.Inc()
	}
	if len(insert) > 0 || len(remove) > 0 || !rc.doent {
		if err := tx.ReplaceEmptyNonTerminals(ctx, insert, remove, !rc.doent); err != nil {
			return nil, fmt.Errorf("rectify %s: %w: failed to replace empty non-terminals: %w", apex, domain.ErrTransaction, err)
		}
	}

	if rc.doent {
		if err := s.orderingPass(ctx, log, tx, rc, rc.entNames(), true); err != nil {
			return nil, fmt.Errorf("rectify %s: %w: %w", apex, domain.ErrTransaction, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("rectify %s: %w: commit failed: %w", apex, domain.ErrTransaction, err)
	}
	committed = true
	metrics.ENTChanges.WithLabelValues("insert").Add(float64(len(insert)))
	metrics.ENTChanges.WithLabelValues("delete").Add(float64(len(remove)))

	return &domain.RectifyResult{
		RunID:       runID,
		Zone:        apex,
		Posture:     posture.Posture(),
		OptOut:      rc.optOut(),
		Narrow:      rc.narrow(),
		Names:       len(rc.qnames),
		ENTs:        len(rc.nonterm),
		ENTInserted: insert,
		ENTDeleted:  remove,
		ENTDisabled: !rc.doent,
	}, nil
}

func logPosture(log *slog.Logger, rc *rectifyContext) {
	switch {
	case rc.posture.Posture() == domain.PostureNSEC:
		log.Info("Adding NSEC ordering information")
	case rc.narrow():
		log.Info("Erasing NSEC3 ordering since we are narrow, only setting 'auth' fields")
	case rc.optOut():
		log.Info("Adding NSEC3 opt-out hashed ordering information")
	case rc.nsec3():
		log.Info("Adding NSEC3 hashed ordering information")
	default:
		log.Info("Non DNSSEC zone, only adding empty non-terminals")
	}
}

// orderingPass writes ordername and auth for every name. The real pass also
// fixes DS, delegation NS and glue rows and collects ENTs.
func (s *RectifyService) orderingPass(ctx context.Context, log *slog.Logger, tx ports.ZoneTransaction, rc *rectifyContext, names []domain.Name, synthetic bool) error {
	writes := 0
	defer func() { metrics.OrderingWrites.Add(float64(writes)) }()

	update := func(name, orderName domain.Name, auth bool, qType domain.RecordType) error {
		writes++
		return tx.UpdateOrderNameAndAuth(ctx, name, orderName, auth, qType)
	}

	for _, name := range names {
		orderName, auth := rc.computeOrdering(name, synthetic, s.hasher)
		log.Debug("ordering", "name", name, "ordername", orderName, "auth", auth, "synthetic", synthetic)

		if err := update(name, orderName, auth, ""); err != nil {
			return err
		}
		if synthetic {
			continue
		}

		if rc.dsnames[name] {
			if err := update(name, rc.dsOrdering(name, s.hasher), true, domain.TypeDS); err != nil {
				return err
			}
		}
		if !auth || rc.nsset[name] {
			if rc.optOut() {
				if err := update(name, "", false, domain.TypeNS); err != nil {
					return err
				}
			}
			if err := update(name, "", false, domain.TypeA); err != nil {
				return err
			}
			if err := update(name, "", false, domain.TypeAAAA); err != nil {
				return err
			}
		}

		rc.trackEmptyNonTerminals(name, auth)
	}
	return nil
}

// RectifyAllZones rectifies every zone with bounded concurrency. Presigned
// zones are skipped; a failing zone does not stop the others.
func (s *RectifyService) RectifyAllZones(ctx context.Context) (*domain.BatchResult, error) {
	zones, err := s.source.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	var (
		mu     sync.Mutex
		merr   *multierror.Error
		result = &domain.BatchResult{Zones: len(zones)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, z := range zones {
		name := domain.NewName(z.Name)
		g.Go(func() error {
			metrics.ActiveWorkers.Inc()
			defer metrics.ActiveWorkers.Dec()

			_, err := s.RectifyZone(gctx, name)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, domain.ErrPresigned):
				result.Skipped++
			case err != nil:
				result.Failed++
				merr = multierror.Append(merr, err)
				s.logger.Error("rectify failed", "zone", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Rectified zones", "zones", result.Zones, "failed", result.Failed, "skipped", result.Skipped)
	return result, merr.ErrorOrNil()
}

// ClosestNames returns the owner names surrounding name in the zone's
// ordering: hashed under NSEC3, plain under NSEC.
func (s *RectifyService) ClosestNames(ctx context.Context, zone, name domain.Name) (domain.Name, domain.Name, error) {
	soa, err := s.source.GetSOA(ctx, zone)
	if err != nil {
		return "", "", err
	}
	posture, err := LoadPosture(ctx, s.keeper, zone)
	if err != nil {
		return "", "", err
	}

	var orderName domain.Name
	switch {
	case posture.HasNSEC3:
		if posture.NSEC3.Narrow {
			return "", "", fmt.Errorf("zone %s is NSEC3 narrow and stores no ordering", zone)
		}
		orderName = hashedOrderName(s.hasher, posture.NSEC3, name, zone)
	case posture.Secured || posture.Presigned:
		orderName = name
	default:
		return "", "", fmt.Errorf("zone %s is unsigned and stores no ordering", zone)
	}
	return s.source.GetBeforeAndAfterNames(ctx, soa.ZoneID, zone, orderName)
}
