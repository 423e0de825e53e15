package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/apportion"
	"github.com/temotskipa/autoredistrict/pkg/buildinfo"
	"github.com/temotskipa/autoredistrict/pkg/census"
	"github.com/temotskipa/autoredistrict/pkg/district"
	apperrors "github.com/temotskipa/autoredistrict/pkg/errors"
	"github.com/temotskipa/autoredistrict/pkg/partition"
	"github.com/temotskipa/autoredistrict/pkg/pipeline"
	"github.com/temotskipa/autoredistrict/pkg/planstore"
)

const (
	defaultAddr     = ":8080"
	shutdownTimeout = 10 * time.Second
	maxRequestBody  = 64 << 20 // GeoJSON unit files get large
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the districting HTTP API",
		Long: `Serve the districting HTTP API.

Endpoints:
  GET    /healthz                liveness probe
  GET    /api/v1/version         build information
  POST   /api/v1/plans           run a districting job, persist the plan
  GET    /api/v1/plans           list saved plans
  GET    /api/v1/plans/{id}      fetch a saved plan
  DELETE /api/v1/plans/{id}      delete a saved plan
  POST   /api/v1/apportionment   Huntington-Hill seat distribution

The listen address comes from --addr, the config file, or
AUTOREDISTRICT_ADDR, in that order of precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.config.Serve.Addr
			}
			if addr == "" {
				addr = defaultAddr
			}
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default "+defaultAddr+")")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable stage caching")

	return cmd
}

// runServe wires the server and blocks until the context is cancelled.
func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	store, err := c.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open plan store: %w", err)
	}
	defer store.Close()

	s := &server{
		logger: c.Logger,
		runner: runner,
		store:  store,
	}
	return s.listen(ctx, addr)
}

// server holds the HTTP API dependencies.
type server struct {
	logger *log.Logger
	runner *pipeline.Runner
	store  planstore.Store
}

// listen serves the API on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *server) listen(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("serving API", "addr", addr)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// routes builds the chi router.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Post("/apportionment", s.handleApportion)
		r.Route("/plans", func(r chi.Router) {
			r.Post("/", s.handleCreatePlan)
			r.Get("/", s.handleListPlans)
			r.Get("/{id}", s.handleGetPlan)
			r.Delete("/{id}", s.handleDeletePlan)
		})
	})

	return r
}

// logRequests logs one line per request with status and duration.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
		"date":    buildinfo.Date,
	})
}

// planRequest is the POST /api/v1/plans body. Exactly one of geojson or
// demo selects the unit table.
type planRequest struct {
	GeoJSON json.RawMessage        `json:"geojson,omitempty"`
	Demo    int                    `json:"demo,omitempty"`
	Mapping census.PropertyMapping `json:"mapping,omitempty"`
	Options partition.Options      `json:"options"`
	Refresh bool                   `json:"refresh,omitempty"`
}

func (s *server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	opts := pipeline.Options{
		Demo:      req.Demo,
		Mapping:   req.Mapping,
		Partition: req.Options,
		Refresh:   req.Refresh,
	}

	// The pipeline loads GeoJSON from a path; inline payloads go through a
	// temp file.
	if len(req.GeoJSON) > 0 {
		f, err := os.CreateTemp("", "autoredistrict-*.geojson")
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.ErrCodeInternal, err, "stage input"))
			return
		}
		defer os.Remove(f.Name())
		if _, err := f.Write(req.GeoJSON); err != nil {
			f.Close()
			writeError(w, apperrors.Wrap(apperrors.ErrCodeInternal, err, "stage input"))
			return
		}
		f.Close()
		opts.GeoJSON = f.Name()
	}

	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.store.Save(r.Context(), res.Plan); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrCodeStore, err, "save plan"))
		return
	}

	w.Header().Set("Location", "/api/v1/plans/"+res.Plan.ID)
	writeJSON(w, http.StatusCreated, res.Plan)
}

func (s *server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrCodeStore, err, "list plans"))
		return
	}
	if infos == nil {
		infos = []planstore.Info{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": infos})
}

func (s *server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apportionRequest is the POST /api/v1/apportionment body.
type apportionRequest struct {
	Populations map[string]int64 `json:"populations"`
	HouseSize   int              `json:"house_size"`
}

func (s *server) handleApportion(w http.ResponseWriter, r *http.Request) {
	var req apportionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	result, err := apportion.Apportion(req.Populations, req.HouseSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// writeError maps err onto the error code space and writes the envelope.
func writeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	writeJSON(w, apperrors.HTTPStatus(code), errorResponse{
		Error: errorBody{Code: code, Message: apperrors.UserMessage(err)},
	})
}

// errorCode classifies an engine error into the flat API code space.
func errorCode(err error) apperrors.Code {
	if code := apperrors.GetCode(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, planstore.ErrNotFound):
		return apperrors.ErrCodeNotFound
	case errors.Is(err, adjacency.ErrDisconnected):
		return apperrors.ErrCodeDisconnected
	case errors.Is(err, partition.ErrInfeasible):
		return apperrors.ErrCodeInfeasible
	case errors.Is(err, district.ErrEmptyDistrict):
		return apperrors.ErrCodeEmptyDistrict
	case errors.Is(err, partition.ErrInvalidOptions),
		errors.Is(err, partition.ErrTooManyDistricts),
		errors.Is(err, apportion.ErrNoStates),
		errors.Is(err, apportion.ErrHouseTooSmall),
		errors.Is(err, apportion.ErrNonPositivePopulation),
		errors.Is(err, census.ErrEmptyTable),
		errors.Is(err, census.ErrEmptyID),
		errors.Is(err, census.ErrDuplicateID),
		errors.Is(err, census.ErrNegativePopulation),
		errors.Is(err, census.ErrEmptyGeometry),
		errors.Is(err, census.ErrLeanRange),
		errors.Is(err, census.ErrUnknownID),
		errors.Is(err, pipeline.ErrInvalidOptions):
		return apperrors.ErrCodeInvalidInput
	default:
		return apperrors.ErrCodeInternal
	}
}
