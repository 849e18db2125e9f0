package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partypool/partypool/pkg/events"
	"github.com/partypool/partypool/pkg/log"
	"github.com/partypool/partypool/pkg/metrics"
	"github.com/partypool/partypool/pkg/operator"
	"github.com/partypool/partypool/pkg/storage"
	"github.com/partypool/partypool/pkg/types"
)

const (
	defaultMinWorkDelay = 1 * time.Second
	defaultMaxWorkDelay = 20 * time.Second
)

// Options configures a Pipeline
type Options struct {
	Store        storage.Store
	Applications operator.ApplicationOperator

	// Packages yields the current set of application packages to install on
	// each cluster. It is called per enqueue so config reloads take effect.
	Packages func() []types.ApplicationPackage

	// ScratchDir is where package archives are extracted before upload
	ScratchDir string

	Broker *events.Broker
	Logger zerolog.Logger

	MinWorkDelay time.Duration
	MaxWorkDelay time.Duration
}

// Pipeline drives queued application deployments through their stages:
// copy the package to the cluster's image store, register the application
// type, create the instance. Jobs and the work queue are durable; a restart
// resumes every job at the stage it was last committed in.
type Pipeline struct {
	store    storage.Store
	apps     operator.ApplicationOperator
	packages func() []types.ApplicationPackage
	scratch  string
	broker   *events.Broker
	logger   zerolog.Logger

	minDelay time.Duration
	maxDelay time.Duration
}

// New creates a deployment pipeline
func New(opts Options) *Pipeline {
	minDelay := opts.MinWorkDelay
	if minDelay == 0 {
		minDelay = defaultMinWorkDelay
	}
	maxDelay := opts.MaxWorkDelay
	if maxDelay == 0 {
		maxDelay = defaultMaxWorkDelay
	}

	return &Pipeline{
		store:    opts.Store,
		apps:     opts.Applications,
		packages: opts.Packages,
		scratch:  opts.ScratchDir,
		broker:   opts.Broker,
		logger:   opts.Logger,
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// QueueApplicationDeployment creates one deployment job per configured
// package for the given cluster and enqueues them all atomically. It returns
// the new job ids.
func (p *Pipeline) QueueApplicationDeployment(ctx context.Context, clusterAddress string, clusterPort int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	packages := p.packages()
	if len(packages) == 0 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s:%d", clusterAddress, clusterPort)
	now := time.Now().UTC()

	jobs := make([]*types.ApplicationDeployment, 0, len(packages))
	for _, pkg := range packages {
		jobs = append(jobs, &types.ApplicationDeployment{
			ID:                      uuid.New().String(),
			Cluster:                 endpoint,
			Status:                  types.DeploymentStatusCopy,
			ApplicationTypeName:     pkg.Name,
			ApplicationTypeVersion:  pkg.Version,
			ApplicationInstanceName: instanceName(pkg.Name, clusterPort),
			PackageFilePath:         pkg.Path,
			Timestamp:               now,
		})
	}

	err := p.store.Update(func(tx storage.Tx) error {
		for _, job := range jobs {
			if err := tx.PutDeployment(job); err != nil {
				return err
			}
			if err := tx.EnqueueDeployment(job.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("queue deployments for %s: %w", endpoint, err)
	}

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
		p.publish(events.DeploymentEvent(events.EventDeploymentQueued, job.ID,
			fmt.Sprintf("%s %s queued for %s", job.ApplicationTypeName, job.ApplicationTypeVersion, endpoint)))
	}
	p.logger.Info().Str("cluster", endpoint).Int("jobs", len(ids)).Msg("queued application deployments")
	return ids, nil
}

// instanceName derives a per-cluster application instance name. The port
// disambiguates instances of the same type across clusters behind one
// address.
func instanceName(typeName string, port int) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(typeName), port)
}

// Run drives the work loop until ctx is cancelled. One job advances one
// stage per pass; the delay between passes shrinks while there is work and
// grows while the queue is empty.
func (p *Pipeline) Run(ctx context.Context) error {
	metrics.UpdateComponent("pipeline", true, "running")
	defer metrics.UpdateComponent("pipeline", false, "stopped")

	delay := p.minDelay
	for {
		worked, err := p.Work(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.UpdateComponent("pipeline", false, err.Error())
			return fmt.Errorf("deployment pipeline: %w", err)
		}

		if worked {
			delay = p.minDelay
		} else {
			delay *= 2
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Work advances the job at the head of the queue by one stage. It reports
// whether anything was done.
//
// The head is peeked, the stage runs outside any transaction, and the
// consume plus the resulting record update commit together. A crash between
// the stage and the commit re-runs the stage on restart; every stage is
// idempotent against the operator for exactly that reason.
func (p *Pipeline) Work(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var head *storage.QueueHead
	var job *types.ApplicationDeployment
	err := p.store.View(func(tx storage.ReadTx) error {
		var err error
		head, err = tx.PeekDeploymentQueue()
		if err != nil {
			return err
		}
		if head == nil {
			return nil
		}
		job, err = tx.GetDeployment(head.DeploymentID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to read work queue")
		metrics.TickErrors.WithLabelValues("pipeline").Inc()
		return false, nil
	}
	if head == nil {
		p.observeQueue()
		return false, nil
	}

	// Queue entry with no record: drop the orphan
	if job == nil {
		err := p.store.Update(func(tx storage.Tx) error {
			return tx.ConsumeQueueHead(head)
		})
		if err != nil {
			return false, err
		}
		orphanLog := log.WithJobID(p.logger, head.DeploymentID)
		orphanLog.Warn().Msg("dropped orphaned queue entry")
		return true, nil
	}

	timer := metrics.NewTimer()
	next, err := p.advance(ctx, *job)
	timer.ObserveDurationVec(metrics.StageDuration, string(job.Status))

	if err != nil {
		if operator.IsTransient(err) {
			// Send the job to the back of the line unchanged so one unready
			// image store cannot starve every other cluster's deployments
			requeueErr := p.store.Update(func(tx storage.Tx) error {
				if err := tx.ConsumeQueueHead(head); err != nil {
					return err
				}
				return tx.EnqueueDeployment(job.ID)
			})
			if requeueErr != nil {
				return false, requeueErr
			}
			requeueLog := log.WithJobID(p.logger, job.ID)
			requeueLog.Warn().Err(err).Str("stage", string(job.Status)).
				Msg("transient failure, requeued")
			metrics.TickErrors.WithLabelValues("pipeline").Inc()
			return true, nil
		}
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		return false, fmt.Errorf("deployment %s stage %s: %w", job.ID, job.Status, err)
	}

	err = p.store.Update(func(tx storage.Tx) error {
		if err := tx.ConsumeQueueHead(head); err != nil {
			return err
		}
		if next.Status.Terminal() {
			return tx.DeleteDeployment(next.ID)
		}
		if err := tx.PutDeployment(&next); err != nil {
			return err
		}
		return tx.EnqueueDeployment(next.ID)
	})
	if err != nil {
		return false, err
	}

	p.finishStage(job, &next)
	p.observeQueue()
	return true, nil
}

func (p *Pipeline) finishStage(prev, next *types.ApplicationDeployment) {
	logger := log.WithJobID(p.logger, next.ID).With().Str("cluster", next.Cluster).
		Str("application", next.ApplicationTypeName).Logger()

	switch next.Status {
	case types.DeploymentStatusComplete:
		metrics.DeploymentsTotal.WithLabelValues("complete").Inc()
		p.publish(events.DeploymentEvent(events.EventDeploymentDone, next.ID,
			fmt.Sprintf("%s deployed to %s", next.ApplicationTypeName, next.Cluster)))
		logger.Info().Msg("deployment complete")
	case types.DeploymentStatusFailed:
		metrics.DeploymentsTotal.WithLabelValues("failed").Inc()
		p.publish(events.DeploymentEvent(events.EventDeploymentFailed, next.ID,
			fmt.Sprintf("%s failed on %s", next.ApplicationTypeName, next.Cluster)))
		logger.Warn().Msg("deployment failed")
	default:
		logger.Debug().Str("from", string(prev.Status)).Str("to", string(next.Status)).Msg("stage advanced")
	}
}

// advance runs one stage of the deployment and returns the record for the
// next stage
func (p *Pipeline) advance(ctx context.Context, job types.ApplicationDeployment) (types.ApplicationDeployment, error) {
	switch job.Status {
	case types.DeploymentStatusCopy:
		return p.stageCopy(ctx, job)
	case types.DeploymentStatusRegister:
		return p.stageRegister(ctx, job)
	case types.DeploymentStatusCreate:
		return p.stageCreate(ctx, job)
	default:
		return job, fmt.Errorf("deployment %s in unexpected stage %s", job.ID, job.Status)
	}
}

// stageCopy extracts the package archive and uploads it to the cluster's
// image store. A missing or corrupt archive fails the job; only operator
// trouble is worth retrying.
func (p *Pipeline) stageCopy(ctx context.Context, job types.ApplicationDeployment) (types.ApplicationDeployment, error) {
	dir, err := extractPackage(job.PackageFilePath, p.scratch)
	if err != nil {
		copyLog := log.WithJobID(p.logger, job.ID)
		copyLog.Error().Err(err).Str("package", job.PackageFilePath).
			Msg("unusable application package")
		return job.WithStatus(types.DeploymentStatusFailed), nil
	}

	path, err := p.apps.CopyPackageToImageStore(ctx, job.Cluster, dir,
		job.ApplicationTypeName, job.ApplicationTypeVersion)
	if err != nil {
		return job, err
	}
	return job.WithImageStorePath(path).WithStatus(types.DeploymentStatusRegister), nil
}

func (p *Pipeline) stageRegister(ctx context.Context, job types.ApplicationDeployment) (types.ApplicationDeployment, error) {
	err := p.apps.RegisterApplication(ctx, job.Cluster, job.ImageStorePath)
	if err != nil && !errors.Is(err, operator.ErrApplicationAlreadyRegistered) {
		return job, err
	}
	return job.WithStatus(types.DeploymentStatusCreate), nil
}

func (p *Pipeline) stageCreate(ctx context.Context, job types.ApplicationDeployment) (types.ApplicationDeployment, error) {
	err := p.apps.CreateApplication(ctx, job.Cluster, job.ApplicationInstanceName,
		job.ApplicationTypeName, job.ApplicationTypeVersion)
	if err != nil && !errors.Is(err, operator.ErrApplicationAlreadyExists) {
		return job, err
	}
	return job.WithStatus(types.DeploymentStatusComplete), nil
}

// GetDeploymentStatus returns the stage of an in-flight job. Completed jobs
// are deleted, so an unknown id reports Complete.
func (p *Pipeline) GetDeploymentStatus(ctx context.Context, id string) (types.DeploymentStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var status types.DeploymentStatus
	err := p.store.View(func(tx storage.ReadTx) error {
		job, err := tx.GetDeployment(id)
		if errors.Is(err, storage.ErrNotFound) {
			status = types.DeploymentStatusComplete
			return nil
		}
		if err != nil {
			return err
		}
		status = job.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func (p *Pipeline) observeQueue() {
	var depth int
	err := p.store.View(func(tx storage.ReadTx) error {
		var err error
		depth, err = tx.QueueDepth()
		return err
	})
	if err != nil {
		return
	}
	metrics.QueueDepth.Set(float64(depth))
}

func (p *Pipeline) publish(event *events.Event) {
	if p.broker != nil {
		p.broker.Publish(event)
	}
}
