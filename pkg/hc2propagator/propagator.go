// Package hc2propagator implements the Change Propagator: it subscribes to
// the durable store's change feed and derives a per-service profile
// collection consumed by the Gateway.
package hc2propagator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hc2-project/hc2/pkg/hc2store"
	"github.com/hc2-project/hc2/pkg/hc2types"
	"github.com/hc2-project/hc2/pkg/utils"
)

// Source is what the propagator subscribes to and bootstraps from.
// pkg/hc2store.Store satisfies this.
type Source interface {
	ListReceipts(ctx context.Context) ([]hc2types.ReceiptDocument, error)
	Subscribe(ctx context.Context, consumer string, fn func(hc2store.ChangeRecord) error) error
}

// Propagator materializes ServiceProfiles from the change feed.
type Propagator struct {
	source   Source
	consumer string
	log      *zap.Logger

	mu       sync.RWMutex
	profiles map[string]*hc2types.ServiceProfile

	cron *cron.Cron
}

// New constructs a Propagator reading from source as consumer (one
// logical consumer per gateway process).
func New(source Source, consumer string, log *zap.Logger) *Propagator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Propagator{
		source:   source,
		consumer: consumer,
		log:      log.With(zap.String("module", "hc2propagator")),
		profiles: make(map[string]*hc2types.ServiceProfile),
		cron:     cron.New(),
	}
}

// Profiles returns a flattened snapshot of every materialized profile.
func (p *Propagator) Profiles() []hc2types.ServiceProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]hc2types.ServiceProfile, 0, len(p.profiles))
	for _, profile := range p.profiles {
		out = append(out, *profile)
	}
	return out
}

// Run performs the full-scan bootstrap, then consumes the live change feed
// until ctx is cancelled, restarting the subscription with exponential
// backoff on fatal error. It also starts a periodic full-rescan sweep as a
// consistency backstop; that sweep does not enforce receipt expiry.
func (p *Propagator) Run(ctx context.Context) error {
	if err := p.bootstrap(ctx); err != nil {
		p.log.Error("bootstrap scan failed", zap.Error(err))
	}

	if _, err := p.cron.AddFunc("@every 5m", func() {
		if err := p.bootstrap(ctx); err != nil {
			p.log.Warn("periodic rescan failed", zap.Error(err))
		}
	}); err != nil {
		p.log.Warn("failed to schedule periodic rescan", zap.Error(err))
	}
	p.cron.Start()
	defer p.cron.Stop()

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	b.MaxInterval = 30 * time.Second

	for {
		err := p.source.Subscribe(ctx, p.consumer, p.apply)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.NextBackOff()
		p.log.Error("change feed subscription ended, restarting", zap.Error(err), zap.Duration("backoff", wait))

		// A successful run (err == nil, which only happens if Subscribe
		// somehow returns without ctx being done) still resets the backoff
		// so transient restarts don't inherit a long wait from an earlier
		// unrelated failure streak.
		if err == nil {
			b.Reset()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// bootstrap performs the full scan required before the live feed is
// trusted, so pre-existing receipts are never missed.
func (p *Propagator) bootstrap(ctx context.Context) error {
	docs, err := p.source.ListReceipts(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string]*hc2types.ServiceProfile)
	for _, doc := range docs {
		merge(fresh, doc)
	}

	p.mu.Lock()
	p.profiles = fresh
	p.mu.Unlock()

	p.log.Info("bootstrap scan complete", zap.Int("receipts", len(docs)), zap.Int("profiles", len(fresh)))
	return nil
}

// apply is the idempotent reducer over (serviceName, receiptId) applied to
// each change record in feed order.
func (p *Propagator) apply(record hc2store.ChangeRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if record.Deleted {
		removeInstance(p.profiles, record.LastKnownName, record.ServiceID)
		return nil
	}
	if record.Doc == nil {
		return nil
	}
	merge(p.profiles, *record.Doc)
	return nil
}

func merge(profiles map[string]*hc2types.ServiceProfile, doc hc2types.ReceiptDocument) {
	name := doc.Claims.Service.Name
	profile, ok := profiles[name]
	if !ok {
		profile = &hc2types.ServiceProfile{Name: name}
		profiles[name] = profile
	}

	profile.Version = doc.Claims.Service.Version
	profile.DependsOn = doc.Claims.Service.DependsOn
	profile.Ports = doc.Claims.Service.Ports
	profile.API = doc.Claims.Service.API

	for i, inst := range profile.Instances {
		if inst.RegistrationReceiptID == doc.Receipt.ReceiptID {
			profile.Instances[i] = instanceFor(doc)
			return
		}
	}
	profile.Instances = append(profile.Instances, instanceFor(doc))
}

func instanceFor(doc hc2types.ReceiptDocument) hc2types.Instance {
	return hc2types.Instance{
		ID:                    utils.NewUUIDOrDefault(),
		RegistrationReceiptID: doc.Receipt.ReceiptID,
		CreatedAt:             time.Now().UnixMilli(),
		RPCEndpoint:           doc.Claims.Service.Network.RPCEndpoint,
		URN:                   doc.Receipt.URN,
	}
}

func removeInstance(profiles map[string]*hc2types.ServiceProfile, serviceName, serviceID string) {
	profile, ok := profiles[serviceName]
	if !ok {
		return
	}
	urn := fmt.Sprintf("urn:hcp:hc2:service-registration-receipt:%s", serviceID)
	kept := profile.Instances[:0]
	for _, inst := range profile.Instances {
		if inst.URN != urn {
			kept = append(kept, inst)
		}
	}
	profile.Instances = kept
	if len(profile.Instances) == 0 {
		delete(profiles, serviceName)
	}
}
