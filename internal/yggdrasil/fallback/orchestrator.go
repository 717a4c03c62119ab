// Package fallback queries externally configured, protocol-compatible
// services when a local lookup misses. It preserves wire payloads exactly
// as the remote returned them and tolerates partial failure of remotes.
package fallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/element-skin/yggdrasil/pkg/slogx"
)

const defaultTimeout = 8 * time.Second

// Requester performs one outbound request against one endpoint. A nil
// result with nil error is a miss for that endpoint.
type Requester func(ctx context.Context, ep domain.FallbackEndpoint) ([]byte, error)

// Orchestrator walks an ordered endpoint list with a selectable strategy.
// Endpoint failures never surface to the caller; they degrade to a miss.
type Orchestrator struct {
	Endpoints []domain.FallbackEndpoint
}

func NewOrchestrator(endpoints []domain.FallbackEndpoint) *Orchestrator {
	return &Orchestrator{Endpoints: endpoints}
}

// Run executes fn against the endpoints using the given strategy and returns
// the first hit plus the endpoint that produced it. A nil result means every
// endpoint missed or failed.
func (o *Orchestrator) Run(ctx context.Context, strategy domain.FallbackStrategy, fn Requester) ([]byte, *domain.FallbackEndpoint) {
	if len(o.Endpoints) == 0 {
		return nil, nil
	}
	if strategy == domain.StrategyParallel {
		return o.runParallel(ctx, fn)
	}
	return o.runSerial(ctx, fn)
}

func (o *Orchestrator) runSerial(ctx context.Context, fn Requester) ([]byte, *domain.FallbackEndpoint) {
	log := slogx.FromContext(ctx)
	for i := range o.Endpoints {
		ep := o.Endpoints[i]
		res, err := o.request(ctx, ep, fn)
		if err != nil {
			log.Warn("fallback endpoint failed",
				slog.String("endpoint", ep.Name),
				slog.Any("error", err),
			)
			continue
		}
		if res != nil {
			return res, &ep
		}
	}
	return nil, nil
}

func (o *Orchestrator) runParallel(ctx context.Context, fn Requester) ([]byte, *domain.FallbackEndpoint) {
	log := slogx.FromContext(ctx)

	// Cancelling the group context is advisory cleanup for the losers; a
	// slow request finishing after the winner is simply discarded.
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		res []byte
		ep  *domain.FallbackEndpoint
	}
	results := make(chan outcome, len(o.Endpoints))

	for i := range o.Endpoints {
		ep := o.Endpoints[i]
		go func() {
			res, err := o.request(groupCtx, ep, fn)
			if err != nil {
				if groupCtx.Err() == nil {
					log.Warn("fallback endpoint failed",
						slog.String("endpoint", ep.Name),
						slog.Any("error", err),
					)
				}
				results <- outcome{}
				return
			}
			results <- outcome{res: res, ep: &ep}
		}()
	}

	for range o.Endpoints {
		out := <-results
		if out.res != nil {
			return out.res, out.ep
		}
	}
	return nil, nil
}

func (o *Orchestrator) request(ctx context.Context, ep domain.FallbackEndpoint, fn Requester) ([]byte, error) {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(reqCtx, ep)
}
