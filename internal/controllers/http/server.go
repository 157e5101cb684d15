package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kelvinlab/vaporcurve/internal/metrics"
	"github.com/kelvinlab/vaporcurve/internal/ports"
	"github.com/kelvinlab/vaporcurve/internal/vapor"
)

// Config carries the HTTP surface settings. Zero values fall back to the
// defaults in New.
type Config struct {
	Addr      string
	ServiceID string

	// Curve query defaults applied when the request omits the parameters.
	CurveMinTorr float64
	CurveMaxTorr float64
	CurveSamples int

	// How long rendered curve charts stay cached.
	ChartCacheTTL time.Duration
}

type Server struct {
	svc    ports.CurveService
	srv    *http.Server
	cfg    Config
	charts *gocache.Cache
}

// New returns a runnable server.
func New(svc ports.CurveService, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ServiceID == "" {
		cfg.ServiceID = "default"
	}
	if cfg.CurveMinTorr == 0 {
		cfg.CurveMinTorr = 1.0
	}
	if cfg.CurveMaxTorr == 0 {
		cfg.CurveMaxTorr = 760.0
	}
	if cfg.CurveSamples <= 0 {
		cfg.CurveSamples = 1000
	}
	if cfg.ChartCacheTTL <= 0 {
		cfg.ChartCacheTTL = 5 * time.Minute
	}

	s := &Server{
		svc:    svc,
		cfg:    cfg,
		charts: gocache.New(cfg.ChartCacheTTL, cfg.ChartCacheTTL),
	}

	mux := http.NewServeMux()

	// Read-only query surface
	mux.HandleFunc("GET /v1/compounds", s.handleListCompounds)
	mux.HandleFunc("GET /v1/compounds/{name}", s.handleGetCompound)
	mux.HandleFunc("GET /v1/compounds/{name}/boiling-point", s.handleBoilingPoint)
	mux.HandleFunc("GET /v1/compounds/{name}/curve", s.handleCurve)
	mux.HandleFunc("GET /v1/compounds/{name}/curve.png", s.handleCurvePNG)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           instrument(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type catalogDTO struct {
	ServiceID string   `json:"service_id"`
	Compounds []string `json:"compounds"`
}

type compoundDTO struct {
	Name            string  `json:"name"`
	VaporEnthalpy   float64 `json:"vapor_enthalpy_kj_mol"`
	RefBoilingPoint float64 `json:"ref_boiling_point_c"`
	RefPressure     float64 `json:"ref_pressure_torr"`
}

func toDTO(c vapor.Compound) compoundDTO {
	return compoundDTO{
		Name:            c.Name,
		VaporEnthalpy:   c.VaporEnthalpy,
		RefBoilingPoint: c.RefBoilingPoint,
		RefPressure:     c.RefPressure,
	}
}

type predictionDTO struct {
	Compound      string  `json:"compound"`
	PressureTorr  float64 `json:"pressure_torr"`
	BoilingPointC float64 `json:"boiling_point_c"`
}

type curveDTO struct {
	Compound      string    `json:"compound"`
	MinTorr       float64   `json:"min_torr"`
	MaxTorr       float64   `json:"max_torr"`
	Samples       int       `json:"samples"`
	PressureTorr  []float64 `json:"pressure_torr"`
	BoilingPointC []float64 `json:"boiling_point_c"`
}

// ---- Handlers ----

func (s *Server) handleListCompounds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalogDTO{ServiceID: s.cfg.ServiceID, Compounds: s.svc.Names()})
}

func (s *Server) handleGetCompound(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Lookup(r.PathValue("name"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(c))
}

func (s *Server) handleBoilingPoint(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	raw := r.URL.Query().Get("pressure_torr")
	if raw == "" {
		writeErr(w, http.StatusBadRequest, "missing parameter 'pressure_torr'")
		return
	}
	pressure, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(pressure) || math.IsInf(pressure, 0) {
		writeErr(w, http.StatusBadRequest, "parameter 'pressure_torr' is not a finite number")
		return
	}

	temp, err := s.svc.BoilingPointAt(name, pressure)
	metrics.RecordPrediction(name, err)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictionDTO{Compound: name, PressureTorr: pressure, BoilingPointC: temp})
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	minTorr, maxTorr, samples, err := s.curveParams(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	curve, err := s.svc.Curve(name, minTorr, maxTorr, samples)
	metrics.RecordCurve(name, len(curve), err)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, curveDTO{
		Compound:      name,
		MinTorr:       minTorr,
		MaxTorr:       maxTorr,
		Samples:       samples,
		PressureTorr:  curve.Pressures(),
		BoilingPointC: curve.Temperatures(),
	})
}

func (s *Server) handleCurvePNG(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	minTorr, maxTorr, samples, err := s.curveParams(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("%s|%g|%g|%d", name, minTorr, maxTorr, samples)
	if cached, ok := s.charts.Get(key); ok {
		metrics.RecordChartCache(true)
		servePNG(w, cached.([]byte))
		return
	}
	metrics.RecordChartCache(false)

	curve, err := s.svc.Curve(name, minTorr, maxTorr, samples)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	png, err := renderCurvePNG(name, curve)
	metrics.RecordChartRender(name, err)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.charts.Set(key, png, gocache.DefaultExpiration)
	servePNG(w, png)
}

// ---- generic helpers ----

func (s *Server) curveParams(r *http.Request) (minTorr, maxTorr float64, samples int, err error) {
	q := r.URL.Query()
	if minTorr, err = floatParam(q, "min_torr", s.cfg.CurveMinTorr); err != nil {
		return 0, 0, 0, err
	}
	if maxTorr, err = floatParam(q, "max_torr", s.cfg.CurveMaxTorr); err != nil {
		return 0, 0, 0, err
	}
	if samples, err = intParam(q, "samples", s.cfg.CurveSamples); err != nil {
		return 0, 0, 0, err
	}
	return minTorr, maxTorr, samples, nil
}

func floatParam(q url.Values, key string, def float64) (float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parameter %q is not a finite number", key)
	}
	return v, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %q is not an integer", key)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeDomainErr(w http.ResponseWriter, err error) {
	writeErr(w, domainStatus(err), err.Error())
}

func domainStatus(err error) int {
	switch {
	case errors.Is(err, vapor.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vapor.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, vapor.ErrNoPhysicalSolution):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func servePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ---- instrumentation ----

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(route, rec.code, time.Since(start).Seconds()*1000)
	})
}
