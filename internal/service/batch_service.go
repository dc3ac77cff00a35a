package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bgm-radar/internal/config"
	"bgm-radar/internal/domain"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

// TenantRuntime is the isolated pipeline of one tenant: its own client,
// quota tracker and store namespace.
type TenantRuntime struct {
	Collector Collector
	Tracker   ChannelTracker
}

// TenantFactory builds the runtime of a tenant.
type TenantFactory func(ctx context.Context, tenant config.Tenant) (*TenantRuntime, error)

// TenantResult is one tenant's share of a batch.
type TenantResult struct {
	TenantID   string                   `json:"tenant_id"`
	Collection *domain.CollectionReport `json:"collection,omitempty"`
	Tracking   *domain.TrackingReport   `json:"tracking,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// BatchReport aggregates a batch run.
type BatchReport struct {
	Batch      int                      `json:"batch"`
	Tenants    []TenantResult           `json:"tenants"`
	Succeeded  int                      `json:"succeeded"`
	Failed     int                      `json:"failed"`
	Collection *domain.CollectionReport `json:"collection,omitempty"`
	Tracking   *domain.TrackingReport   `json:"tracking,omitempty"`
}

// BatchService runs groups of tenants concurrently.
type BatchService struct {
	batches [][]config.Tenant
	base    config.Preset
	factory TenantFactory
	logger  *logger.Logger
}

// NewBatchService splits tenants into batches of batchSize.
func NewBatchService(tenants []config.Tenant, batchSize int, base config.Preset, factory TenantFactory, log *logger.Logger) *BatchService {
	if log == nil {
		log = logger.NewNop()
	}
	return &BatchService{
		batches: config.SplitBatches(tenants, batchSize),
		base:    base,
		factory: factory,
		logger:  log.Component("batch"),
	}
}

// Batches returns the tenant groups in run order.
func (s *BatchService) Batches() [][]config.Tenant {
	return s.batches
}

// RunBatch collects for every tenant of batch index in parallel. It fails only
// when the index is unknown or every tenant failed.
func (s *BatchService) RunBatch(ctx context.Context, index int) (*BatchReport, error) {
	report, err := s.fanOut(ctx, index, func(ctx context.Context, t config.Tenant, rt *TenantRuntime, res *TenantResult) error {
		opts := RunOptionsFromPreset(t.Preset(s.base))
		opts.Keywords = t.Keywords
		r, err := rt.Collector.Run(ctx, opts)
		res.Collection = r
		return err
	})
	if report != nil {
		report.Collection = domain.NewCollectionReport()
		for _, t := range report.Tenants {
			report.Collection.Merge(t.Collection)
		}
	}
	return report, err
}

// TrackBatch runs a tracking pass for every tenant of batch index in parallel.
func (s *BatchService) TrackBatch(ctx context.Context, index int) (*BatchReport, error) {
	report, err := s.fanOut(ctx, index, func(ctx context.Context, _ config.Tenant, rt *TenantRuntime, res *TenantResult) error {
		r, err := rt.Tracker.UpdateAll(ctx)
		res.Tracking = r
		return err
	})
	if report != nil {
		report.Tracking = &domain.TrackingReport{}
		for _, t := range report.Tenants {
			report.Tracking.Merge(t.Tracking)
		}
	}
	return report, err
}

type tenantJob func(ctx context.Context, t config.Tenant, rt *TenantRuntime, res *TenantResult) error

func (s *BatchService) fanOut(ctx context.Context, index int, job tenantJob) (*BatchReport, error) {
	if index < 0 || index >= len(s.batches) {
		return nil, errors.NewValidationError(
			fmt.Sprintf("batch index %d out of range", index),
			map[string]interface{}{"batches": len(s.batches)})
	}
	tenants := s.batches[index]
	report := &BatchReport{Batch: index, Tenants: make([]TenantResult, len(tenants))}

	var mu sync.Mutex
	var g errgroup.Group
	for i, tenant := range tenants {
		i, tenant := i, tenant
		g.Go(func() error {
			res := TenantResult{TenantID: tenant.ID}
			log := s.logger.WithField("tenant", tenant.ID)

			err := func() error {
				rt, err := s.factory(ctx, tenant)
				if err != nil {
					return err
				}
				return job(ctx, tenant, rt, &res)
			}()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.WithError(err).Error("Tenant run failed")
				res.Error = err.Error()
				report.Failed++
			} else {
				report.Succeeded++
			}
			report.Tenants[i] = res
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Batch finished",
		zap.Int("batch", index),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))

	if len(tenants) > 0 && report.Succeeded == 0 {
		return report, errors.NewInternalError(fmt.Sprintf("all %d tenants of batch %d failed", len(tenants), index), nil)
	}
	return report, nil
}
