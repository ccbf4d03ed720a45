// Package book provides the HTTP handlers and business logic for
// creating events, processing bets, resolving outcomes, and settling
// rewards.
//
// All monetary values use shopspring/decimal — never float64 for money.
package book

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/momentum-markets/engine/internal/curve"
	"github.com/momentum-markets/engine/internal/fixture"
	"github.com/momentum-markets/engine/internal/growth"
	"github.com/momentum-markets/engine/internal/limits"
	"github.com/momentum-markets/engine/internal/metrics"
	"github.com/momentum-markets/engine/internal/model"
	"github.com/momentum-markets/engine/internal/reward"
	"github.com/momentum-markets/engine/internal/store"
)

// entryCapMarks converts a full-unit cap to the thousands-scale marker
// recorded on bets (the upstream ledger convention the simulator expects).
var entryCapMarks = decimal.NewFromInt(1000)

// Service handles market operations. Uses a mutex for serialized bet and
// resolution processing (single-instance). For horizontal scaling,
// replace with distributed locking or database-level optimistic
// concurrency.
type Service struct {
	store   store.Store
	limiter *limits.StakeLimiter
	mu      sync.Mutex
	wsHub   *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new book service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, limiter *limits.StakeLimiter, hub *WSHub) *Service {
	return &Service{
		store:   st,
		limiter: limiter,
		wsHub:   hub,
	}
}

// --- Request/Response types ---

// SideRequest is one side in an event creation request.
type SideRequest struct {
	Ticker string `json:"ticker"` // MM-{eventCode}-{S1|S2}-{YYYYMMDD}
	Name   string `json:"name"`
}

// CreateEventRequest is the JSON body for event creation.
type CreateEventRequest struct {
	Name  string        `json:"name"`
	Sides []SideRequest `json:"sides"` // exactly two
}

// BetRequest is the JSON body for POST /bets.
type BetRequest struct {
	UserID  string          `json:"user_id"`
	EventID string          `json:"event_id"`
	SideID  string          `json:"side_id"`
	Amount  decimal.Decimal `json:"amount"` // gross, pre-tax
}

// BetResponse is the JSON body returned from POST /bets.
type BetResponse struct {
	BetID       string          `json:"bet_id"`
	UserID      string          `json:"user_id"`
	EventID     string          `json:"event_id"`
	SideID      string          `json:"side_id"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	CapAtBet    decimal.Decimal `json:"cap_at_bet"`
	NewCap      decimal.Decimal `json:"new_cap"`
}

// ResolveRequest is the JSON body for POST /events/{eventID}/resolve.
type ResolveRequest struct {
	WinnerSideID string `json:"winner_side_id"`
}

// SettleResponse wraps a settlement batch; Message is set instead of the
// batch lists when no user qualifies.
type SettleResponse struct {
	Batch   reward.Batch `json:"batch"`
	Message string       `json:"message,omitempty"`
}

// --- HTTP Handlers ---

// CreateEvent handles POST /api/v1/events
func (s *Service) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	if len(req.Sides) != 2 {
		writeError(w, "exactly two sides are required", http.StatusBadRequest)
		return
	}

	// Validate ticker format; both sides must belong to one event code.
	parsed := make([]*fixture.Fixture, 2)
	for i, side := range req.Sides {
		f, err := fixture.ParseTicker(side.Ticker)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		parsed[i] = f
	}
	if parsed[0].EventCode != parsed[1].EventCode {
		writeError(w, "side tickers must share one event code", http.StatusBadRequest)
		return
	}
	if parsed[0].Slot == parsed[1].Slot {
		writeError(w, "side tickers must occupy both slots", http.StatusBadRequest)
		return
	}

	event := &model.Event{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Status:    model.StatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	for _, side := range req.Sides {
		event.Sides = append(event.Sides, model.Side{
			ID:         uuid.New().String(),
			EventID:    event.ID,
			Ticker:     side.Ticker,
			Name:       side.Name,
			CurrentCap: curve.BaselineCap,
			FinalCap:   decimal.Zero,
		})
	}

	ctx := r.Context()
	if err := s.store.CreateEvent(ctx, event); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	metrics.ActiveEvents.Inc()

	slog.Info("event created",
		"id", event.ID,
		"name", event.Name,
		"side_1", event.Sides[0].Ticker,
		"side_2", event.Sides[1].Ticker,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(event)
}

// GetEvent handles GET /api/v1/events/{eventID}
func (s *Service) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	event, err := s.store.GetEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, "event not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}

// ListEvents handles GET /api/v1/events
func (s *Service) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context())
	if err != nil {
		writeError(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []model.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// PlaceBet handles POST /api/v1/bets
// Splits the tax, advances the side's cap through the bonding curve, and
// appends an immutable bet record.
func (s *Service) PlaceBet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Serialize bet processing.
	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		writeError(w, "event not found: "+req.EventID, http.StatusNotFound)
		return
	}
	if event.Status != model.StatusOpen {
		writeError(w, "event is not open for betting", http.StatusConflict)
		return
	}

	var side *model.Side
	for i := range event.Sides {
		if event.Sides[i].ID == req.SideID {
			side = &event.Sides[i]
			break
		}
	}
	if side == nil {
		writeError(w, "side not found on event: "+req.SideID, http.StatusNotFound)
		return
	}

	// --- Stake limit check ---
	stakes, err := s.store.GetUserSideStakes(ctx, req.UserID)
	if err != nil {
		writeError(w, "failed to check stake limits", http.StatusInternalServerError)
		return
	}
	if err := s.limiter.CheckLimit(limits.SideKey(event.ID, side.ID), req.Amount, stakes); err != nil {
		metrics.StakeLimitRejections.Inc()
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	// --- Tax split + curve advance ---
	taxAmount := curve.Tax(req.Amount)
	netAmount := curve.PostTax(req.Amount)
	capAtBet := side.CurrentCap.Div(entryCapMarks)
	newCap := curve.NewMarketCap(side.CurrentCap, netAmount)

	if err := s.store.UpdateSideCap(ctx, event.ID, side.ID, newCap); err != nil {
		writeError(w, "failed to update side cap", http.StatusInternalServerError)
		return
	}

	// Create immutable bet record.
	bet := &model.Bet{
		ID:          uuid.New().String(),
		EventID:     event.ID,
		SideID:      side.ID,
		UserID:      req.UserID,
		GrossAmount: req.Amount,
		TaxAmount:   taxAmount,
		NetAmount:   netAmount,
		CapAtBet:    capAtBet,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.store.InsertBet(ctx, bet); err != nil {
		writeError(w, "failed to record bet", http.StatusInternalServerError)
		return
	}

	metrics.BetsTotal.WithLabelValues(side.Ticker).Inc()
	metrics.BetLatency.WithLabelValues(side.Ticker).Observe(time.Since(start).Seconds())

	slog.Info("bet processed",
		"bet_id", bet.ID,
		"user", req.UserID,
		"event", event.ID,
		"side", side.Ticker,
		"gross", req.Amount.String(),
		"net", netAmount.String(),
		"new_cap", newCap.String(),
	)

	// Broadcast cap movement via WebSocket.
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    "bet_processed",
			EventID: event.ID,
			SideID:  side.ID,
			Ticker:  side.Ticker,
			Cap:     newCap.String(),
			Gross:   req.Amount.String(),
			Net:     netAmount.String(),
		})
	}

	resp := BetResponse{
		BetID:       bet.ID,
		UserID:      bet.UserID,
		EventID:     bet.EventID,
		SideID:      bet.SideID,
		GrossAmount: bet.GrossAmount,
		TaxAmount:   bet.TaxAmount,
		NetAmount:   bet.NetAmount,
		CapAtBet:    bet.CapAtBet,
		NewCap:      newCap,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ResolveEvent handles POST /api/v1/events/{eventID}/resolve
// Freezes both sides' caps as final and records the winner. Bets and
// repeat resolutions are rejected afterwards.
func (s *Service) ResolveEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.WinnerSideID == "" {
		writeError(w, "winner_side_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		writeError(w, "event not found", http.StatusNotFound)
		return
	}
	if event.Status == model.StatusResolved {
		writeError(w, "event already resolved", http.StatusConflict)
		return
	}

	if err := s.store.ResolveEvent(ctx, eventID, req.WinnerSideID); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.ActiveEvents.Dec()

	event, err = s.store.GetEvent(ctx, eventID)
	if err != nil {
		writeError(w, "failed to load resolved event", http.StatusInternalServerError)
		return
	}

	slog.Info("event resolved",
		"event", eventID,
		"winner", req.WinnerSideID,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    "event_resolved",
			EventID: eventID,
			Winner:  req.WinnerSideID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}

// QuoteReward handles GET /api/v1/rewards/quote
// One-user reward estimate from query parameters: stake, entry_cap (in
// thousands of cap units), winning_final_cap, losing_final_cap. A
// winning_multiplier (growth multiple above the baseline cap, must
// exceed 1) may be given instead of winning_final_cap.
func (s *Service) QuoteReward(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	parse := func(name string) (decimal.Decimal, bool) {
		v, err := decimal.NewFromString(q.Get(name))
		if err != nil {
			writeError(w, name+" must be a decimal number", http.StatusBadRequest)
			return decimal.Decimal{}, false
		}
		return v, true
	}

	stake, ok := parse("stake")
	if !ok {
		return
	}
	entryCap, ok := parse("entry_cap")
	if !ok {
		return
	}

	var winningFinalCap decimal.Decimal
	if q.Get("winning_multiplier") != "" {
		multiplier, ok := parse("winning_multiplier")
		if !ok {
			return
		}
		cap, err := fixture.ImpliedFinalCap(multiplier)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		winningFinalCap = cap
	} else {
		winningFinalCap, ok = parse("winning_final_cap")
		if !ok {
			return
		}
	}

	losingFinalCap, ok := parse("losing_final_cap")
	if !ok {
		return
	}

	rew, err := reward.Compute(reward.Input{
		Stake:           stake,
		EntryCap:        entryCap,
		WinningFinalCap: winningFinalCap,
		LosingFinalCap:  losingFinalCap,
	})
	if errors.Is(err, growth.ErrInvalidInput) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, "reward computation failed", http.StatusInternalServerError)
		return
	}
	if rew.SimulationCapped {
		metrics.SimulationCeilingHits.Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rew)
}

// SettleEvent handles POST /api/v1/events/{eventID}/settle
// Runs the batch apportioner over a frozen snapshot and returns the
// payout batch for submission by the settlement collaborator.
func (s *Service) SettleEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	event, bets, err := s.store.Snapshot(ctx, eventID)
	if err != nil {
		writeError(w, "event not found", http.StatusNotFound)
		return
	}
	if event.Status != model.StatusResolved {
		writeError(w, "event must be resolved before settlement", http.StatusConflict)
		return
	}

	var winning, losing *model.Side
	for i := range event.Sides {
		if event.Sides[i].ID == event.WinnerID {
			winning = &event.Sides[i]
		} else {
			losing = &event.Sides[i]
		}
	}
	if winning == nil || losing == nil {
		writeError(w, "resolved event is missing a side", http.StatusInternalServerError)
		return
	}

	batch, err := reward.SettleEvent(reward.Snapshot{
		EventID:         event.ID,
		WinningSideID:   winning.ID,
		WinningFinalCap: winning.FinalCap,
		LosingFinalCap:  losing.FinalCap,
		Bets:            bets,
	})

	resp := SettleResponse{Batch: batch}
	switch {
	case errors.Is(err, reward.ErrNoQualifyingParticipants):
		resp.Message = "no qualifying users"
		metrics.SettlementsTotal.WithLabelValues("empty").Inc()
	case err != nil:
		metrics.SettlementsTotal.WithLabelValues("error").Inc()
		writeError(w, "settlement failed", http.StatusInternalServerError)
		return
	default:
		metrics.SettlementsTotal.WithLabelValues("ok").Inc()
	}
	if batch.SimulationCapped {
		metrics.SimulationCeilingHits.Inc()
	}

	slog.Info("event settled",
		"event", event.ID,
		"winner", winning.Ticker,
		"winners", len(batch.Users),
		"losing_liquidity", batch.LosingLiquidity.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetUserBets handles GET /api/v1/users/{userID}/bets
func (s *Service) GetUserBets(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	bets, err := s.store.GetBetsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load bets", http.StatusInternalServerError)
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bets)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
