package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/gemfall/arcade/internal/errors"
	"github.com/gemfall/arcade/internal/platform/requestctx"
	"github.com/gemfall/arcade/internal/services/arcade/app"
	"github.com/gemfall/arcade/internal/services/arcade/domain"
)

// defaultListLimit caps the leaderboard and activity read views.
const defaultListLimit = 20

// Handler serves the arcade JSON API.
type Handler struct {
	engine     *app.Engine
	settlement *app.Settlement
	authSecret string
}

// NewHandler builds the API handler over the application services.
func NewHandler(engine *app.Engine, settlement *app.Settlement, authSecret string) *Handler {
	return &Handler{
		engine:     engine,
		settlement: settlement,
		authSecret: authSecret,
	}
}

// Router assembles the route table with shared middleware.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	authed := func(method string, fn http.HandlerFunc) http.Handler {
		return Chain(fn, RequireMethod(method), Authenticate(h.authSecret))
	}
	public := func(method string, fn http.HandlerFunc) http.Handler {
		return Chain(fn, RequireMethod(method))
	}

	mux.Handle("/api/games", authed(http.MethodPost, h.startGame))
	mux.Handle("/api/games/reveal", authed(http.MethodPost, h.revealCell))
	mux.Handle("/api/games/cash-out", authed(http.MethodPost, h.cashOut))
	mux.Handle("/api/rewards/claim", authed(http.MethodPost, h.claimReward))
	mux.Handle("/api/quota", authed(http.MethodGet, h.quotaStatus))
	mux.Handle("/api/leaderboard", public(http.MethodGet, h.leaderboard))
	mux.Handle("/api/activity", public(http.MethodGet, h.activity))

	return Chain(mux, RequestID(), RecoverPanic())
}

type startGameRequest struct {
	DisplayName string `json:"displayName"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	GridSize  int    `json:"gridSize"`
	MineCount int    `json:"mineCount"`
	Revealed  []int  `json:"revealedPositions"`
	Status    string `json:"status"`
	Reward    int    `json:"reward"`
}

func (h *Handler) startGame(w http.ResponseWriter, r *http.Request) {
	var req startGameRequest
	if r.Body != nil {
		// An empty body is a valid start request.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	playerID := requestctx.PlayerIDFromContext(RequestContext(r))
	session, err := h.engine.StartSession(RequestContext(r), playerID, req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, sessionView(session))
}

type revealRequest struct {
	SessionID string `json:"sessionId"`
	CellIndex int    `json:"cellIndex"`
}

type revealResponse struct {
	SessionID string `json:"sessionId"`
	IsMine    bool   `json:"isMine"`
	GameOver  bool   `json:"gameOver"`
	Won       bool   `json:"won"`
	Revealed  []int  `json:"revealedPositions"`
	Reward    int    `json:"reward"`
	Status    string `json:"status"`

	// Mines are disclosed only once the session is over.
	Mines []int `json:"minePositions,omitempty"`
}

func (h *Handler) revealCell(w http.ResponseWriter, r *http.Request) {
	var req revealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apperrors.New(apperrors.CodeInvalidRequest, "request body is not valid JSON"))
		return
	}
	playerID := requestctx.PlayerIDFromContext(RequestContext(r))
	result, err := h.engine.RevealCell(RequestContext(r), playerID, req.SessionID, req.CellIndex)
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := revealResponse{
		SessionID: result.Session.ID,
		IsMine:    result.Outcome.IsMine,
		GameOver:  result.Outcome.GameOver,
		Won:       result.Outcome.Won,
		Revealed:  revealedOrEmpty(result.Session),
		Reward:    result.Session.Reward(),
		Status:    string(result.Session.Status),
	}
	if result.Outcome.GameOver {
		resp.Mines = result.Session.Mines
	}
	WriteJSON(w, http.StatusOK, resp)
}

type cashOutRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *Handler) cashOut(w http.ResponseWriter, r *http.Request) {
	var req cashOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apperrors.New(apperrors.CodeInvalidRequest, "request body is not valid JSON"))
		return
	}
	playerID := requestctx.PlayerIDFromContext(RequestContext(r))
	session, err := h.engine.CashOut(RequestContext(r), playerID, req.SessionID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, revealResponse{
		SessionID: session.ID,
		GameOver:  true,
		Won:       true,
		Revealed:  revealedOrEmpty(session),
		Reward:    session.Reward(),
		Status:    string(session.Status),
		Mines:     session.Mines,
	})
}

type claimRequest struct {
	SessionID string `json:"sessionId"`
}

type claimResponse struct {
	SessionID    string `json:"sessionId"`
	TransferHash string `json:"transferHash"`
	Destination  string `json:"destination"`
	Amount       int64  `json:"amount"`
}

func (h *Handler) claimReward(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apperrors.New(apperrors.CodeInvalidRequest, "request body is not valid JSON"))
		return
	}
	playerID := requestctx.PlayerIDFromContext(RequestContext(r))
	receipt, err := h.settlement.Settle(RequestContext(r), playerID, req.SessionID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, claimResponse{
		SessionID:    req.SessionID,
		TransferHash: receipt.Hash,
		Destination:  receipt.Destination,
		Amount:       receipt.Amount,
	})
}

type quotaResponse struct {
	MaxPlays  int    `json:"maxPlays"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	NextReset string `json:"nextReset"`
}

func (h *Handler) quotaStatus(w http.ResponseWriter, r *http.Request) {
	playerID := requestctx.PlayerIDFromContext(RequestContext(r))
	status, err := h.engine.QuotaStatus(RequestContext(r), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quotaResponse{
		MaxPlays:  status.MaxPlays,
		Used:      status.Used,
		Remaining: status.Remaining,
		NextReset: status.NextReset.UTC().Format(time.RFC3339),
	})
}

type leaderboardEntry struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	TotalGems   int64  `json:"totalGems"`
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	ranks, err := h.engine.Leaderboard(RequestContext(r), listLimit(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	entries := make([]leaderboardEntry, 0, len(ranks))
	for _, rank := range ranks {
		entries = append(entries, leaderboardEntry{
			PlayerID:    rank.PlayerID,
			DisplayName: rank.DisplayName,
			TotalGems:   rank.TotalGems,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"players": entries})
}

type activityItem struct {
	SessionID   string `json:"sessionId"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
	Reward      int    `json:"reward"`
	StartedAt   string `json:"startedAt"`
	EndedAt     string `json:"endedAt,omitempty"`
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.Activity(RequestContext(r), listLimit(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]activityItem, 0, len(entries))
	for _, entry := range entries {
		item := activityItem{
			SessionID:   entry.SessionID,
			PlayerID:    entry.PlayerID,
			DisplayName: entry.DisplayName,
			Status:      string(entry.Status),
			Reward:      entry.Reward,
			StartedAt:   entry.StartedAt.UTC().Format(time.RFC3339),
		}
		if entry.EndedAt != nil {
			item.EndedAt = entry.EndedAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"sessions": items})
}

func sessionView(session domain.Session) sessionResponse {
	return sessionResponse{
		SessionID: session.ID,
		GridSize:  session.GridSize,
		MineCount: len(session.Mines),
		Revealed:  revealedOrEmpty(session),
		Status:    string(session.Status),
		Reward:    session.Reward(),
	}
}

// revealedOrEmpty keeps the JSON field an array instead of null.
func revealedOrEmpty(session domain.Session) []int {
	if session.Revealed == nil {
		return []int{}
	}
	return session.Revealed
}

func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 100 {
		return defaultListLimit
	}
	return limit
}
