// Package dispatch executes a claimed job against its delivery adapter
// and records the terminal result.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/models"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/telemetry"
)

// ResultStore is the slice of the job store the dispatcher writes to.
type ResultStore interface {
	RecordResult(ctx context.Context, id int64, status, log, postedURL string) error
	AppendAudit(ctx context.Context, postID int64, event, detail string) error
}

// Dispatcher resolves adapters and finalizes jobs. It never returns an
// error for publish outcomes: success and failure both land on the
// posted status, distinguished by the result log.
type Dispatcher struct {
	registry *publish.Registry
	store    ResultStore
	log      zerolog.Logger
}

func New(registry *publish.Registry, store ResultStore, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		store:    store,
		log:      log,
	}
}

// Execute publishes one claimed job and writes the terminal result. A
// panic inside an adapter is converted into a failure result so a single
// defective adapter cannot take down the scheduling process or leave the
// job in posting.
func (d *Dispatcher) Execute(ctx context.Context, job models.Post) {
	res := d.publish(ctx, job)

	if res.Failed() {
		telemetry.PublishFailures.Inc()
	} else {
		telemetry.PublishSuccess.Inc()
	}

	if err := d.store.RecordResult(ctx, job.ID, models.StatusPosted, res.Log, res.PostedURL); err != nil {
		// The job stays in posting; the reclaim pass (when enabled) or an
		// operator has to resolve it. Nothing else can be done here.
		d.log.Error().Err(err).Int64("post_id", job.ID).Msg("record result failed")
		return
	}
	_ = d.store.AppendAudit(ctx, job.ID, "posted", res.Log)

	d.log.Info().
		Int64("post_id", job.ID).
		Str("platform", job.Platform).
		Bool("failed", res.Failed()).
		Str("url", res.PostedURL).
		Msg("job finalized")
}

func (d *Dispatcher) publish(ctx context.Context, job models.Post) (res publish.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Int64("post_id", job.ID).
				Str("platform", job.Platform).
				Str("stack", string(debug.Stack())).
				Msgf("adapter panicked: %v", r)
			res = publish.Failure(fmt.Sprintf("Exception: %v", r))
		}
	}()

	adapter, ok := d.registry.Resolve(job.Platform)
	if !ok {
		telemetry.UnknownPlatform.Inc()
		d.log.Warn().Int64("post_id", job.ID).Str("platform", job.Platform).Msg("unknown platform")
		return publish.Failure(fmt.Sprintf("Unknown platform %q", job.Platform))
	}

	return adapter.Publish(ctx, publish.Request{
		MediaRef: job.MediaRef,
		Caption:  job.Caption,
	})
}
