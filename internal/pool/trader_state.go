package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/flub/pool-engine/internal/events"
	"github.com/flub/pool-engine/internal/model"
	"github.com/flub/pool-engine/internal/store"
)

// traderStateDefaults are served for keys that were never saved.
var traderStateDefaults = model.TraderState{
	"pendingOrders": json.RawMessage(`[]`),
	"autoTiers":     json.RawMessage(`{"tier1":{"deviation":2,"allocation":10},"tier2":{"deviation":5,"allocation":5}}`),
	"autoCooldowns": json.RawMessage(`{}`),
	"autoTradeLog":  json.RawMessage(`[]`),
}

// TraderStateKeys returns the keys SaveTraderState accepts, sorted.
func TraderStateKeys() []string {
	keys := make([]string, 0, len(traderStateDefaults))
	for k := range traderStateDefaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TraderState returns the shared automation blob. Keys that were never
// saved carry their defaults.
func (s *Service) TraderState(ctx context.Context) (model.TraderState, error) {
	state, err := s.store.GetTraderState(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get trader state: %w", err)
	}

	out := make(model.TraderState, len(traderStateDefaults)+len(state))
	for k, v := range traderStateDefaults {
		out[k] = v
	}
	for k, v := range state {
		out[k] = v
	}
	return out, nil
}

// SaveTraderState merges patch into the stored blob. Only known keys are
// kept; values must be valid JSON and are stored uninterpreted.
func (s *Service) SaveTraderState(ctx context.Context, patch model.TraderState) error {
	accepted := make(model.TraderState, len(patch))
	for k, v := range patch {
		if _, ok := traderStateDefaults[k]; !ok {
			slog.Debug("trader state: ignoring unknown key", "key", k)
			continue
		}
		if !json.Valid(v) {
			return fmt.Errorf("%w: trader state key %s is not valid JSON", ErrInvalidInput, k)
		}
		accepted[k] = v
	}
	if len(accepted) == 0 {
		return fmt.Errorf("%w: no trader state keys to save", ErrInvalidInput)
	}

	if err := s.store.MergeTraderState(ctx, accepted); err != nil {
		return fmt.Errorf("merge trader state: %w", err)
	}

	slog.Info("trader state saved", "keys", len(accepted))
	s.notifier.Notify(events.Event{
		Type:      events.TypeTraderStateSaved,
		Timestamp: s.now(),
	})
	return nil
}
