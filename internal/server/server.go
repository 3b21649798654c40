// Package server exposes the pricing, sensitivity and evaluation components
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/contactkeval/option-pricer/internal/evaluation"
	"github.com/contactkeval/option-pricer/internal/logger"
	"github.com/contactkeval/option-pricer/internal/nullfloat"
	"github.com/contactkeval/option-pricer/internal/pricing"
	"github.com/contactkeval/option-pricer/internal/sensitivity"
)

// Defaults for sweep requests that omit range or steps.
const (
	DefaultRangePct = 0.2
	DefaultSteps    = 100
)

// Request size limits.
const (
	MaxSteps     = 10000
	MaxBodyBytes = 1 << 20
)

// errBadRequest marks malformed query or body input.
var errBadRequest = errors.New("bad request")

// Server is the HTTP front end.
type Server struct {
	engine    *pricing.Engine
	analyzer  *sensitivity.Analyzer
	evaluator *evaluation.Evaluator
	router    *mux.Router
	log       *logrus.Entry
}

// New builds a Server and its routes.
func New(engine *pricing.Engine, analyzer *sensitivity.Analyzer, evaluator *evaluation.Evaluator) *Server {
	s := &Server{
		engine:    engine,
		analyzer:  analyzer,
		evaluator: evaluator,
		router:    mux.NewRouter(),
		log:       logger.WithComponent("server"),
	}
	s.serveRoutes(s.router)
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start).String(),
		}).Debug("request")
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("encode response: %v", err)
	}
}

// writeError maps caller mistakes to 400 and anything else to 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, pricing.ErrInvalidArgument),
		errors.Is(err, sensitivity.ErrInvalidSweep),
		errors.Is(err, evaluation.ErrEmptyInput),
		errors.Is(err, evaluation.ErrShapeMismatch):
		status = http.StatusBadRequest
	default:
		s.log.Errorf("request failed: %v", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type priceResponse struct {
	Params pricing.Params     `json:"params"`
	Type   pricing.OptionType `json:"type"`
	Price  nullfloat.Float    `json:"price"`
}

func (s *Server) price(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := pricing.ParseOptionType(valueOr(q, "type", "call"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := parseParams(q, "")
	if err != nil {
		s.writeError(w, err)
		return
	}

	v, err := s.engine.Price(p, t)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, priceResponse{Params: p, Type: t, Price: nullfloat.Float(v)})
}

type greeksResponse struct {
	Params pricing.Params     `json:"params"`
	Type   pricing.OptionType `json:"type"`
	Greeks pricing.Greeks     `json:"greeks"`
}

type greekResponse struct {
	Params pricing.Params     `json:"params"`
	Type   pricing.OptionType `json:"type"`
	Greek  pricing.Greek      `json:"greek"`
	Value  nullfloat.Float    `json:"value"`
}

// greeks returns all five Greeks, or just the one named by ?greek=.
func (s *Server) greeks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := pricing.ParseOptionType(valueOr(q, "type", "call"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := parseParams(q, "")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if name := q.Get("greek"); name != "" {
		g, err := pricing.ParseGreek(name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		v, err := s.engine.Greek(g, p, t)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, greekResponse{Params: p, Type: t, Greek: g, Value: nullfloat.Float(v)})
		return
	}

	all, err := s.engine.AllGreeks(p, t)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, greeksResponse{Params: p, Type: t, Greeks: all})
}

// sweep varies ?param= around ?base= (defaulting to that parameter's own
// query value) and returns the call price curve, or a Greek curve when
// ?greek= is set.
func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	param, err := sensitivity.ParseParam(q.Get("param"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	fixed, err := parseParams(q, param)
	if err != nil {
		s.writeError(w, err)
		return
	}

	baseKey := "base"
	if q.Get(baseKey) == "" {
		baseKey = string(param)
	}
	base, err := floatParam(q, baseKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rangePct, err := floatParamOr(q, "range", DefaultRangePct)
	if err != nil {
		s.writeError(w, err)
		return
	}
	steps := DefaultSteps
	if v := q.Get("steps"); v != "" {
		if steps, err = strconv.Atoi(v); err != nil {
			s.writeError(w, fmt.Errorf("%w: steps %q is not an integer", errBadRequest, v))
			return
		}
		if steps > MaxSteps {
			s.writeError(w, fmt.Errorf("%w: steps must be <= %d, got %d", errBadRequest, MaxSteps, steps))
			return
		}
	}

	var sw sensitivity.Sweep
	if name := q.Get("greek"); name != "" {
		g, gerr := pricing.ParseGreek(name)
		if gerr != nil {
			s.writeError(w, gerr)
			return
		}
		t, terr := pricing.ParseOptionType(valueOr(q, "type", "call"))
		if terr != nil {
			s.writeError(w, terr)
			return
		}
		sw, err = s.analyzer.GreekSweep(g, t, param, base, rangePct, steps, fixed)
	} else {
		sw, err = s.analyzer.ParameterSensitivity(param, base, rangePct, steps, fixed)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sw)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := pricing.ParseOptionType(valueOr(q, "type", "call"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := parseParams(q, sensitivity.ParamS)
	if err != nil {
		s.writeError(w, err)
		return
	}

	prof, err := s.analyzer.GreekProfile(p, t)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prof)
}

type metricsRequest struct {
	Market []float64 `json:"market"`
	Model  []float64 `json:"model"`
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	var req metricsRequest
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	m, err := s.evaluator.CalculateMetrics(req.Market, req.Model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

// parseParams reads S, K, T, r and sigma from q. skip names a parameter
// that may be absent (left zero).
func parseParams(q url.Values, skip sensitivity.Param) (pricing.Params, error) {
	var p pricing.Params
	fields := []struct {
		name sensitivity.Param
		dst  *float64
	}{
		{sensitivity.ParamS, &p.S},
		{sensitivity.ParamK, &p.K},
		{sensitivity.ParamT, &p.T},
		{sensitivity.ParamR, &p.R},
		{sensitivity.ParamSigma, &p.Sigma},
	}
	for _, f := range fields {
		if f.name == skip && q.Get(string(f.name)) == "" {
			continue
		}
		v, err := floatParam(q, string(f.name))
		if err != nil {
			return pricing.Params{}, err
		}
		*f.dst = v
	}
	return p, nil
}

func floatParam(q url.Values, name string) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing query parameter %q", errBadRequest, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", errBadRequest, name, raw)
	}
	return v, nil
}

func floatParamOr(q url.Values, name string, def float64) (float64, error) {
	if q.Get(name) == "" {
		return def, nil
	}
	return floatParam(q, name)
}

func valueOr(q url.Values, name, def string) string {
	if v := q.Get(name); v != "" {
		return v
	}
	return def
}
