package mesa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/mesa/internal/agents/cardapio"
	"github.com/aretw0/mesa/internal/agents/estoque"
	"github.com/aretw0/mesa/internal/agents/promocao"
	"github.com/aretw0/mesa/internal/seed"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/ports"
	"github.com/aretw0/mesa/pkg/update"
)

const persistLockTTL = 30 * time.Second

// Persist saves a snapshot of every agent to the configured store.
// It is a no-op without WithSnapshotStore.
func (h *Host) Persist(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	if h.locker != nil {
		unlock, err := h.locker.Lock(ctx, "persist", persistLockTTL)
		if err != nil {
			return fmt.Errorf("failed to lock store: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				h.logger.Warn("failed to release persist lock", "error", err)
			}
		}()
	}

	var errs []error
	for _, name := range h.names {
		s, ok := h.agents[name].agent.(ports.Snapshotter)
		if !ok {
			continue
		}
		state, err := s.Snapshot()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		snap, err := domain.NewSnapshot(name, state)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: failed to encode snapshot: %w", name, err))
			continue
		}
		if err := h.store.Save(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		h.logger.Debug("agent persisted", "agent", name, "bytes", len(snap.Data))
	}
	return errors.Join(errs...)
}

// Restore loads the last snapshot of every agent. Agents without a snapshot keep their state.
func (h *Host) Restore(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	var errs []error
	for _, name := range h.names {
		s, ok := h.agents[name].agent.(ports.Snapshotter)
		if !ok {
			continue
		}
		snap, err := h.store.Load(ctx, name)
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if err := s.Restore(snap.Data); err != nil {
			errs = append(errs, err)
			continue
		}
		h.logger.Info("agent restored", "agent", name, "saved_at", snap.SavedAt)
	}
	return errors.Join(errs...)
}

// Seed loads initial data into the agents. Stock levels and active promotions are
// then pushed to the menu through the update sub-protocol, synchronously.
func (h *Host) Seed(ctx context.Context, d *seed.Data) error {
	if d == nil {
		return nil
	}
	h.menu.Seed(d.MenuItems())
	h.customers.Seed(d.CustomerList())

	stock := d.StockItems()
	h.stock.Seed(stock)
	promos := d.PromotionList()
	h.promotions.Seed(promos)

	target := update.StreamTarget(cardapio.Name)
	var errs []error
	for _, it := range stock {
		ack, err := h.pubs[estoque.Name].Send(ctx, target, update.NewStockUpdate(it.ItemID, it.Quantity))
		errs = append(errs, h.seedResult(it.ItemID, ack, err))
	}
	for _, p := range promos {
		if !p.Active {
			continue
		}
		ack, err := h.pubs[promocao.Name].Send(ctx, target, p.Event())
		errs = append(errs, h.seedResult(p.PromoID, ack, err))
	}
	return errors.Join(errs...)
}

// seedResult turns a NACK into a warning; only transport failures are errors.
func (h *Host) seedResult(subject string, ack update.Ack, err error) error {
	if err != nil {
		return fmt.Errorf("seed %s: %w", subject, err)
	}
	if !ack.Processed {
		h.logger.Warn("seed update not applied", "subject", subject, "reason", ack.Error)
	}
	return nil
}
