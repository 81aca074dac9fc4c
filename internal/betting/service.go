// Package betting provides the HTTP handlers and business logic for
// creating markets, placing stakes, settling outcomes, and the charity
// ledger.
//
// All monetary values use shopspring/decimal — never float64 for money.
package betting

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestbet/pari-engine/internal/limits"
	"github.com/harvestbet/pari-engine/internal/metrics"
	"github.com/harvestbet/pari-engine/internal/model"
	"github.com/harvestbet/pari-engine/internal/parimutuel"
	"github.com/harvestbet/pari-engine/internal/proposition"
	"github.com/harvestbet/pari-engine/internal/store"
)

// Service handles market operations. Stake placement and settlement for a
// given market serialize on a per-market lock; different markets proceed in
// parallel.
//
// The service never moves funds: the caller is expected to complete the
// token transfer before POST /stakes and to pay winners from the settlement
// result afterwards.
type Service struct {
	store   store.Store
	pricing *parimutuel.PricingPolicy
	settler *parimutuel.SettlementEngine
	limiter *limits.StakeLimiter
	feeRate decimal.Decimal
	locks   *marketLocks
	wsHub   *WSHub // optional WebSocket hub for real-time broadcasts

	// Clock supplies the current time for deadline checks and stake
	// timestamps. Injected so tests can control time.
	Clock func() time.Time
}

// NewService creates a new betting service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, pricing *parimutuel.PricingPolicy, limiter *limits.StakeLimiter,
	feeRate decimal.Decimal, hub *WSHub) *Service {
	return &Service{
		store:   st,
		pricing: pricing,
		settler: parimutuel.NewSettlementEngine(),
		limiter: limiter,
		feeRate: feeRate,
		locks:   newMarketLocks(),
		wsHub:   hub,
		Clock:   func() time.Time { return time.Now().UTC() },
	}
}

// --- Request/Response types ---

// CreateMarketRequest is the JSON body for market creation.
type CreateMarketRequest struct {
	Proposition string          `json:"proposition"` // HB-{city}-{condition}-{threshold}-{YYYYMMDD}
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Province    string          `json:"province"`
	Crop        string          `json:"crop"`
	// ForecastProbability, when set, seeds the market's default odds
	// (quoted while the opposing pool is empty). Zero → policy default.
	ForecastProbability decimal.Decimal `json:"forecast_probability"`
}

// StakeRequest is the JSON body for POST /api/v1/stakes.
type StakeRequest struct {
	MarketID string          `json:"market_id"`
	BettorID string          `json:"bettor_id"` // wallet address or account id
	Side     model.Side      `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
}

// StakeResponse is the JSON body returned from POST /api/v1/stakes.
type StakeResponse struct {
	Stake   model.Stake     `json:"stake"`
	YesPool decimal.Decimal `json:"yes_pool"`
	NoPool  decimal.Decimal `json:"no_pool"`
}

// ResolveRequest is the JSON body for POST /markets/{marketID}/resolve.
type ResolveRequest struct {
	Outcome model.Side `json:"outcome"`
}

// DistributeRequest is the JSON body for POST /charity/{entryID}/distribute.
type DistributeRequest struct {
	RecipientName    string `json:"recipient_name"`
	RecipientAddress string `json:"recipient_address"`
}

// CharityResponse is the JSON body for GET /api/v1/charity.
type CharityResponse struct {
	Total   decimal.Decimal            `json:"total"`
	Entries []model.CharityLedgerEntry `json:"entries"`
}

// --- HTTP Handlers ---

// CreateMarket handles POST /api/v1/markets
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	prop, err := proposition.Parse(req.Proposition)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.store.GetMarketByProposition(r.Context(), req.Proposition); err == nil {
		writeError(w, "market already exists for proposition "+req.Proposition, http.StatusConflict)
		return
	}
	if req.Title == "" {
		writeError(w, "title is required", http.StatusBadRequest)
		return
	}
	if req.Province == "" {
		writeError(w, "province is required", http.StatusBadRequest)
		return
	}

	defaultOdds := s.pricing.DefaultOdds()
	if req.ForecastProbability.IsPositive() {
		defaultOdds, err = proposition.DeriveDefaultOdds(req.ForecastProbability)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	market := &model.Market{
		ID:          uuid.New().String(),
		Proposition: req.Proposition,
		Title:       req.Title,
		Description: req.Description,
		City:        prop.City,
		Province:    req.Province,
		Condition:   prop.Condition,
		Crop:        req.Crop,
		YesPool:     decimal.Zero,
		NoPool:      decimal.Zero,
		DefaultOdds: defaultOdds,
		Deadline:    prop.Deadline(),
		Status:      model.StatusOpen,
		CreatedAt:   s.Clock(),
	}

	if err := s.store.CreateMarket(r.Context(), market); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	metrics.OpenMarkets.Inc()
	slog.Info("market created",
		"id", market.ID,
		"proposition", req.Proposition,
		"city", prop.City,
		"deadline", market.Deadline,
		"default_odds", defaultOdds.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(market)
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	market, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// GetMarketByProposition handles GET /api/v1/propositions/{ticker}/market
// Looks up a market by its proposition ticker instead of its ID.
func (s *Service) GetMarketByProposition(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	market, err := s.store.GetMarketByProposition(r.Context(), ticker)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// ListMarkets handles GET /api/v1/markets
// Returns all markets, optionally filtered by ?city= and ?status=.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}

	city := r.URL.Query().Get("city")
	status := r.URL.Query().Get("status")
	if city != "" || status != "" {
		filtered := []model.Market{}
		for _, m := range markets {
			if city != "" && m.City != city {
				continue
			}
			if status != "" && m.Status != status {
				continue
			}
			filtered = append(filtered, m)
		}
		markets = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(markets)
}

// GetQuote handles GET /api/v1/markets/{marketID}/quote?side=YES&amount=100
// Read-only: repeated calls never mutate the market.
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	side := model.Side(r.URL.Query().Get("side"))
	if !side.Valid() {
		writeError(w, "side must be YES or NO", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, "amount must be a decimal number", http.StatusBadRequest)
		return
	}

	market, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	quote, err := s.pricing.Quote(market, side, amount)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quote)
}

// PlaceStake handles POST /api/v1/stakes
// Quotes against the current pools, commits the stake atomically, and
// returns the stake with its captured odds.
func (s *Service) PlaceStake(w http.ResponseWriter, r *http.Request) {
	var req StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.BettorID == "" {
		writeError(w, "bettor_id is required", http.StatusBadRequest)
		return
	}
	if !req.Side.Valid() {
		writeError(w, "side must be YES or NO", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, parimutuel.ErrStakeNotPositive.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	start := time.Now()

	// Serialize against other stakes and settlement on this market.
	unlock := s.locks.lock(req.MarketID)
	defer unlock()

	market, err := s.store.GetMarket(ctx, req.MarketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	now := s.Clock()
	if market.Status != model.StatusOpen {
		writeError(w, parimutuel.ErrMarketClosed.Error(), http.StatusConflict)
		return
	}
	if now.After(market.Deadline) {
		writeError(w, parimutuel.ErrDeadlinePassed.Error(), http.StatusConflict)
		return
	}

	// --- Stake limit check ---
	exposures, err := s.store.GetBettorExposures(ctx, req.BettorID)
	if err != nil {
		writeError(w, "failed to check stake limits", http.StatusInternalServerError)
		return
	}
	if err := s.limiter.CheckLimit(market.ID, market.Province, req.Amount, exposures); err != nil {
		metrics.StakeLimitRejections.Inc()
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	// Quote is captured at commit time, not recomputed later, so the
	// bettor's confirmation and the audit trail agree even after later
	// stakes shift the pool.
	quote, err := s.pricing.Quote(market, req.Side, req.Amount)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	yesPool := market.YesPool
	noPool := market.NoPool
	if req.Side == model.SideYes {
		yesPool = yesPool.Add(req.Amount)
	} else {
		noPool = noPool.Add(req.Amount)
	}

	stake := &model.Stake{
		ID:              uuid.New().String(),
		MarketID:        market.ID,
		BettorID:        req.BettorID,
		Side:            req.Side,
		Amount:          req.Amount,
		Odds:            quote.Odds,
		PotentialPayout: quote.PotentialPayout,
		Status:          model.StakePending,
		PlacedAt:        now,
	}

	if err := s.store.CommitStake(ctx, stake, yesPool, noPool); err != nil {
		writeError(w, "failed to record stake", http.StatusInternalServerError)
		return
	}

	metrics.StakesTotal.WithLabelValues(string(req.Side)).Inc()
	metrics.StakeLatency.WithLabelValues(string(req.Side)).Observe(time.Since(start).Seconds())

	slog.Info("stake placed",
		"stake_id", stake.ID,
		"market", market.ID,
		"bettor", req.BettorID,
		"side", req.Side,
		"amount", req.Amount.String(),
		"odds", quote.Odds.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:        "stake_placed",
			MarketID:    market.ID,
			Proposition: market.Proposition,
			City:        market.City,
			YesPool:     yesPool.String(),
			NoPool:      noPool.String(),
			Side:        string(req.Side),
			Amount:      req.Amount.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(StakeResponse{
		Stake:   *stake,
		YesPool: yesPool,
		NoPool:  noPool,
	})
}

// CloseMarket handles POST /api/v1/markets/{marketID}/close
// Administrative Open→Closed transition; no new stakes afterwards.
func (s *Service) CloseMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	unlock := s.locks.lock(marketID)
	defer unlock()

	market, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}
	if market.Status != model.StatusOpen {
		writeError(w, parimutuel.ErrInvalidState.Error(), http.StatusConflict)
		return
	}

	if err := s.store.UpdateMarketStatus(r.Context(), marketID, model.StatusClosed, ""); err != nil {
		writeError(w, "failed to close market", http.StatusInternalServerError)
		return
	}

	metrics.OpenMarkets.Dec()
	slog.Info("market closed", "market", marketID)

	market.Status = model.StatusClosed
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// ResolveMarket handles POST /api/v1/markets/{marketID}/resolve
// Settles a closed market: computes every payout, skims the charity fee
// from the losing pool, and records one charity ledger entry.
func (s *Service) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Outcome.Valid() {
		writeError(w, parimutuel.ErrUnknownOutcome.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	unlock := s.locks.lock(marketID)
	defer unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	// A market past its deadline is conceptually closed even if no close
	// call has flipped the row yet; record the transition before settling.
	if market.Status == model.StatusOpen && s.Clock().After(market.Deadline) {
		if err := s.store.UpdateMarketStatus(ctx, marketID, model.StatusClosed, ""); err != nil {
			writeError(w, "failed to close market", http.StatusInternalServerError)
			return
		}
		metrics.OpenMarkets.Dec()
		market.Status = model.StatusClosed
	}

	stakes, err := s.store.GetStakesByMarket(ctx, marketID)
	if err != nil {
		writeError(w, "failed to load stakes", http.StatusInternalServerError)
		return
	}

	result, err := s.settler.Settle(market, req.Outcome, stakes, s.feeRate)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	var entry *model.CharityLedgerEntry
	if result.CharityFee.IsPositive() {
		entry = &model.CharityLedgerEntry{
			ID:             uuid.New().String(),
			SourceMarketID: marketID,
			Amount:         result.CharityFee,
			Status:         model.CharityPending,
			CreatedAt:      s.Clock(),
		}
	}

	if err := s.store.ApplySettlement(ctx, marketID, model.StatusSettled, req.Outcome, result.Payouts, entry); err != nil {
		writeError(w, "failed to record settlement", http.StatusInternalServerError)
		return
	}

	metrics.SettlementsTotal.WithLabelValues(string(req.Outcome)).Inc()
	metrics.CharityFeesTotal.Add(result.CharityFee.InexactFloat64())

	slog.Info("market settled",
		"market", marketID,
		"outcome", req.Outcome,
		"winning_pool", result.WinningPool.String(),
		"losing_pool", result.LosingPool.String(),
		"charity_fee", result.CharityFee.String(),
		"payouts", len(result.Payouts),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:        "market_settled",
			MarketID:    market.ID,
			Proposition: market.Proposition,
			City:        market.City,
			Outcome:     string(req.Outcome),
			CharityFee:  result.CharityFee.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// CancelMarket handles POST /api/v1/markets/{marketID}/cancel
// Administrative escape: every stake refunds at face value, no fee taken,
// no charity entry created.
func (s *Service) CancelMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	ctx := r.Context()

	unlock := s.locks.lock(marketID)
	defer unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	stakes, err := s.store.GetStakesByMarket(ctx, marketID)
	if err != nil {
		writeError(w, "failed to load stakes", http.StatusInternalServerError)
		return
	}

	result, err := s.settler.Cancel(market, stakes)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	if err := s.store.ApplySettlement(ctx, marketID, model.StatusCancelled, "", result.Payouts, nil); err != nil {
		writeError(w, "failed to record cancellation", http.StatusInternalServerError)
		return
	}

	if market.Status == model.StatusOpen {
		metrics.OpenMarkets.Dec()
	}

	slog.Info("market cancelled", "market", marketID, "refunds", len(result.Payouts))

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:        "market_cancelled",
			MarketID:    market.ID,
			Proposition: market.Proposition,
			City:        market.City,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetMarketStakes handles GET /api/v1/markets/{marketID}/stakes
// Returns the market's stake history, oldest first.
func (s *Service) GetMarketStakes(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	stakes, err := s.store.GetStakesByMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "failed to get stakes", http.StatusInternalServerError)
		return
	}
	if stakes == nil {
		stakes = []model.Stake{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stakes)
}

// GetBettorStakes handles GET /api/v1/bettors/{bettorID}/stakes
// Returns a bettor's full bet history with captured odds and payouts.
func (s *Service) GetBettorStakes(w http.ResponseWriter, r *http.Request) {
	bettorID := chi.URLParam(r, "bettorID")

	stakes, err := s.store.GetStakesByBettor(r.Context(), bettorID)
	if err != nil {
		writeError(w, "failed to get stakes", http.StatusInternalServerError)
		return
	}
	if stakes == nil {
		stakes = []model.Stake{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stakes)
}

// GetCharity handles GET /api/v1/charity
// Returns the charity ledger and the running donation total.
func (s *Service) GetCharity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListCharityEntries(r.Context())
	if err != nil {
		writeError(w, "failed to get charity ledger", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.CharityLedgerEntry{}
	}

	total, err := s.store.CharityTotal(r.Context())
	if err != nil {
		writeError(w, "failed to get charity total", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CharityResponse{Total: total, Entries: entries})
}

// DistributeCharity handles POST /api/v1/charity/{entryID}/distribute
func (s *Service) DistributeCharity(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	var req DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RecipientName == "" {
		writeError(w, "recipient_name is required", http.StatusBadRequest)
		return
	}

	if err := s.store.DistributeCharityEntry(r.Context(), entryID, req.RecipientName, req.RecipientAddress, s.Clock()); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Info("charity entry distributed", "entry", entryID, "recipient", req.RecipientName)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": model.CharityDistributed})
}

// errStatus maps engine errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, parimutuel.ErrStakeNotPositive),
		errors.Is(err, parimutuel.ErrUnknownOutcome),
		errors.Is(err, parimutuel.ErrInvalidFeeRate):
		return http.StatusBadRequest
	case errors.Is(err, parimutuel.ErrMarketClosed),
		errors.Is(err, parimutuel.ErrDeadlinePassed),
		errors.Is(err, parimutuel.ErrInvalidState),
		errors.Is(err, parimutuel.ErrDuplicateSettlement):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
