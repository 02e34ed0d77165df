package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/fill"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/market/data"
	"github.com/rustyeddy/gridtrader/sim"
	"github.com/shopspring/decimal"
)

// LadderRequest is the body of POST /api/v1/ladder.
type LadderRequest struct {
	Side          string          `json:"side"`
	AnchorPrice   decimal.Decimal `json:"anchor_price"`
	Step          decimal.Decimal `json:"step"`
	StepMode      string          `json:"step_mode"`
	Levels        int             `json:"levels"`
	QtyPerLevel   int64           `json:"qty_per_level"`
	TickSize      decimal.Decimal `json:"tick_size"`
	GuardianMode  string          `json:"guardian_mode,omitempty"`
	GuardianValue decimal.Decimal `json:"guardian_value"`
	Commission    decimal.Decimal `json:"commission"`
}

type LadderResponse struct {
	Levels   []grid.Level  `json:"levels"`
	Analysis grid.Analysis `json:"analysis"`
}

// TwoPointRequest is the body of POST /api/v1/ladder/two-point.
type TwoPointRequest struct {
	Side        string          `json:"side"`
	OpenPrice   decimal.Decimal `json:"open_price"`
	SecondPrice decimal.Decimal `json:"second_price"`
	Levels      int             `json:"levels"`
	QtyPerLevel int64           `json:"qty_per_level"`
	MinStep     decimal.Decimal `json:"min_step"`
	TickSize    decimal.Decimal `json:"tick_size"`
	Commission  decimal.Decimal `json:"commission"`
}

type TwoPointResponse struct {
	grid.TwoPointLadder
	Analysis grid.Analysis `json:"analysis"`
}

// BacktestRequest is the body of POST /api/v1/backtest. Zero values fall
// back to the server defaults.
type BacktestRequest struct {
	Template       grid.Template    `json:"template"`
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
	Interval       string           `json:"interval"`
	InitialCapital decimal.Decimal  `json:"initial_capital"`
	Commission     *decimal.Decimal `json:"commission,omitempty"`
	Slippage       *decimal.Decimal `json:"slippage,omitempty"`
	Seed           *int64           `json:"seed,omitempty"`
	MultiPosition  bool             `json:"multi_position"`
}

type BacktestResponse struct {
	RunID  string      `json:"run_id"`
	Notes  []string    `json:"notes,omitempty"`
	Result *sim.Result `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Row   *int   `json:"row,omitempty"`
}

func (s *Server) handleLadder(w http.ResponseWriter, r *http.Request) {
	var req LadderRequest
	if !decode(w, r, &req) {
		return
	}

	side, err := grid.ParseSide(req.Side)
	if err != nil {
		s.writeError(w, err)
		return
	}
	mode, err := grid.ParseStepMode(req.StepMode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if mode == "" {
		mode = grid.Absolute
	}
	gmode, err := grid.ParseStepMode(req.GuardianMode)
	if err != nil {
		s.writeError(w, err)
		return
	}

	levels, err := grid.BuildLadder(grid.LadderConfig{
		Side:          side,
		AnchorPrice:   req.AnchorPrice,
		Step:          req.Step,
		StepMode:      mode,
		Levels:        req.Levels,
		QtyPerLevel:   req.QtyPerLevel,
		TickSize:      req.TickSize,
		GuardianMode:  gmode,
		GuardianValue: req.GuardianValue,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LadderResponse{Levels: levels, Analysis: grid.Analyze(levels, req.Commission)})
}

func (s *Server) handleTwoPoint(w http.ResponseWriter, r *http.Request) {
	var req TwoPointRequest
	if !decode(w, r, &req) {
		return
	}
	side, err := grid.ParseSide(req.Side)
	if err != nil {
		s.writeError(w, err)
		return
	}

	l, err := grid.BuildTwoPointLadder(grid.TwoPointConfig{
		Side:        side,
		OpenPrice:   req.OpenPrice,
		SecondPrice: req.SecondPrice,
		Levels:      req.Levels,
		QtyPerLevel: req.QtyPerLevel,
		MinStep:     req.MinStep,
		TickSize:    req.TickSize,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TwoPointResponse{TwoPointLadder: l, Analysis: grid.Analyze(l.Levels, req.Commission)})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	if s.opts.Provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no data provider configured"})
		return
	}
	var req BacktestRequest
	if !decode(w, r, &req) {
		return
	}

	t := req.Template
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	if t.StepMode == "" {
		t.StepMode = grid.Absolute
	}
	if t.ID == "" {
		t.ID = strings.ToLower(t.Symbol) + "-" + strings.ToLower(string(t.Side))
	}
	if err := t.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	iv, err := data.ParseInterval(req.Interval)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "interval"})
		return
	}

	cfg := s.opts.Fill
	if req.Commission != nil {
		cfg.Commission = *req.Commission
	}
	if req.Slippage != nil {
		cfg.Slippage = *req.Slippage
	}
	seed := s.opts.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	model, err := fill.NewSimulated(cfg, seed)
	if err != nil {
		s.writeError(w, err)
		return
	}

	capital := req.InitialCapital
	if capital.IsZero() {
		capital = s.opts.InitialCapital
	}
	engine, err := sim.NewEngine(sim.Options{
		InitialCapital: capital,
		Fill:           model,
		Seed:           seed,
		Sink:           s.bus,
		MultiPosition:  req.MultiPosition,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	runner := &backtest.Runner{
		Provider: s.opts.Provider,
		Engine:   engine,
		Journal:  s.opts.Journal,
		Logger:   s.log,
		Dataset:  s.opts.Dataset,
		OrgDir:   s.opts.OrgDir,
	}
	rep, err := runner.Run(r.Context(), data.Request{Symbol: t.Symbol, From: req.From, To: req.To, Interval: iv}, t)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BacktestResponse{RunID: rep.Run.RunID, Notes: rep.Run.Notes, Result: rep.Result})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps the grid error taxonomy onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		cfgErr  *grid.ConfigurationError
		dataErr *grid.DataError
		stErr   *grid.StateError
	)
	switch {
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: cfgErr.Field})
	case errors.As(err, &dataErr):
		resp := errorResponse{Error: err.Error()}
		if dataErr.Index >= 0 {
			resp.Row = &dataErr.Index
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.As(err, &stErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
