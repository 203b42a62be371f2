/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the stores with realistic
	point activity for demos. Every scenario drives the real engine, so
	balances, histories and failed events are exactly what live traffic
	would have produced.

AVAILABLE SCENARIOS:

	empty:            Nothing but a reset
	regular-user:     A few charges and uses on one user
	overdraft:        Uses that exceed the balance, plus a negative charge
	near-ceiling:     A balance just under the ceiling and a charge that crosses it
	contention:       Many concurrent charges on one user

HOW SCENARIOS WORK:
 1. Reset the stores (clear all data), if the store supports it
 2. Run charges/uses through the engine
 3. Rejections are expected and end up in the failed-event log

USAGE VIA API:

	POST /scenarios/load
	{"scenario_id": "overdraft"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to the loaders map

NOTE:

	Scenarios reset the stores. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - point/engine.go: Charge / Use
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/warp/point-engine/point"
)

// Resetter clears every account and log entry.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Users       []point.UserID `json:"users"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "empty",
		Name:        "Empty",
		Description: "Reset only, no accounts",
		Users:       []point.UserID{},
	},
	{
		ID:          "regular-user",
		Name:        "Regular User",
		Description: "Charge 1000, use 300, charge 500, use 200",
		Users:       []point.UserID{1},
	},
	{
		ID:          "overdraft",
		Name:        "Overdraft Attempts",
		Description: "Uses larger than the balance and a negative charge, all rejected and audited",
		Users:       []point.UserID{2},
	},
	{
		ID:          "near-ceiling",
		Name:        "Near Ceiling",
		Description: "Balance 100 below the ceiling; a charge of 1000 is rejected, 100 is accepted",
		Users:       []point.UserID{3},
	},
	{
		ID:          "contention",
		Name:        "Contention",
		Description: "50 concurrent charges of 10 on one user (busy rejections under the try policy)",
		Users:       []point.UserID{4},
	},
}

func (h *Handler) loaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"empty":        func(context.Context) error { return nil },
		"regular-user": h.loadRegularUserScenario,
		"overdraft":    h.loadOverdraftScenario,
		"near-ceiling": h.loadNearCeilingScenario,
		"contention":   h.loadContentionScenario,
	}
}

// scenarioState tracks the last loaded scenario.
type scenarioState struct {
	mu      sync.Mutex
	current string
}

// ListScenarios returns available scenarios.
// GET /scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenario.mu.Lock()
	current := h.scenario.current
	h.scenario.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the stores and loads a predefined scenario.
// POST /scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := h.loaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}

	// One load at a time; a reset racing another load would interleave data.
	h.scenario.mu.Lock()
	defer h.scenario.mu.Unlock()

	ctx := r.Context()
	if h.Store != nil {
		if err := h.Store.Reset(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset stores", err)
			return
		}
	}
	h.scenario.current = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.scenario.current = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type step struct {
	op     point.TxType
	amount int64
}

// runSteps applies steps in order for one user. Rejections the engine
// records as failed events are part of the scenario; anything else aborts.
func (h *Handler) runSteps(ctx context.Context, userID point.UserID, steps []step) error {
	for _, s := range steps {
		var err error
		switch s.op {
		case point.TxCharge:
			_, err = h.Engine.Charge(ctx, userID, s.amount)
		case point.TxUse:
			_, err = h.Engine.Use(ctx, userID, s.amount)
		}
		if err != nil && !point.IsClientError(err) && !point.IsRetryable(err) {
			return fmt.Errorf("%s %d for user %d: %w", s.op, s.amount, userID, err)
		}
	}
	return nil
}

func (h *Handler) loadRegularUserScenario(ctx context.Context) error {
	return h.runSteps(ctx, 1, []step{
		{point.TxCharge, 1000},
		{point.TxUse, 300},
		{point.TxCharge, 500},
		{point.TxUse, 200},
	})
}

func (h *Handler) loadOverdraftScenario(ctx context.Context) error {
	return h.runSteps(ctx, 2, []step{
		{point.TxCharge, 500},
		{point.TxUse, 800}, // insufficient
		{point.TxUse, 200},
		{point.TxUse, 301},    // insufficient
		{point.TxCharge, -50}, // invalid amount
	})
}

func (h *Handler) loadNearCeilingScenario(ctx context.Context) error {
	ceiling := h.Engine.Policy.MaxBalance
	if ceiling <= 0 {
		ceiling = point.DefaultMaxBalance
	}
	return h.runSteps(ctx, 3, []step{
		{point.TxCharge, ceiling - 100},
		{point.TxCharge, 1000}, // crosses the ceiling when one is set
		{point.TxCharge, 100},
	})
}

func (h *Handler) loadContentionScenario(ctx context.Context) error {
	const workers = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.runSteps(ctx, 4, []step{{point.TxCharge, 10}}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	return <-errs
}
