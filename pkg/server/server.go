// Package server exposes the relationship resolver and the field lifecycle
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chmenegatti/multiselect/pkg/attach"
	"github.com/chmenegatti/multiselect/pkg/auth"
	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/record"
	"github.com/chmenegatti/multiselect/pkg/resource"
)

const maxRequestBodySize = 1 << 20

var errBadRequest = errors.New("bad request")

type Server struct {
	cfg     config.ServerConfig
	catalog *resource.Catalog
	attach  *attach.Controller
	saver   *resource.Saver
	users   map[string]*auth.User // bearer token -> user
	logger  *slog.Logger
}

func New(cfg config.ServerConfig, users []config.UserConfig, catalog *resource.Catalog, ctrl *attach.Controller, saver *resource.Saver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	byToken := make(map[string]*auth.User, len(users))
	for _, u := range users {
		byToken[u.Token] = auth.NewUser(u.Name, u.Abilities...)
	}
	return &Server{
		cfg:     cfg,
		catalog: catalog,
		attach:  ctrl,
		saver:   saver,
		users:   byToken,
		logger:  logger.With("component", "server"),
	}
}

// Handler returns the routes mounted under the configured base path.
func (s *Server) Handler() http.Handler {
	base := strings.TrimSuffix(s.cfg.BasePath, "/")
	mux := http.NewServeMux()

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		mux.HandleFunc(method+" "+base+"/multiselect/{resource}/{relationship}", s.handleAttachCreate)
		mux.HandleFunc(method+" "+base+"/multiselect/{resource}/{resourceId}/{relationship}", s.handleAttachEdit)
	}
	mux.HandleFunc("GET "+base+"/resources/{resource}/fields", s.handleFields)
	mux.HandleFunc("GET "+base+"/resources/{resource}/{resourceId}", s.handleShow)
	mux.HandleFunc("POST "+base+"/resources/{resource}", s.handleStore)
	mux.HandleFunc("PUT "+base+"/resources/{resource}/{resourceId}", s.handleUpdate)
	mux.HandleFunc("GET "+base+"/pages/{resource}/{resourceId}", s.handlePage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return s.logRequests(s.authenticate(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "basePath", s.cfg.BasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleAttachCreate(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.request(r, auth.ContextCreate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.attach.Create(r.Context(), req, req.Resource, r.PathValue("relationship"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAttachEdit(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.request(r, auth.ContextUpdate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.attach.Edit(r.Context(), req, req.Resource, r.PathValue("resourceId"), r.PathValue("relationship"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleFields lists the descriptors of the fields the principal may see.
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	req, t, err := s.request(r, auth.ContextCreate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fields := []any{}
	for _, f := range t.Fields.Fields() {
		if f.IsVisible(req) {
			fields = append(fields, f)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"resource": t.Key, "fields": fields})
}

// handleShow returns the resolved value of every visible field of a row.
func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	req, t, err := s.request(r, auth.ContextDetail)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.saver.Load(r.Context(), t, r.PathValue("resourceId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	values := map[string]any{}
	for _, f := range t.Fields.Fields() {
		if !f.IsVisible(req) {
			continue
		}
		v, err := f.Resolve(rec)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		values[f.Attribute()] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": rec[t.PrimaryKeyColumn()], "values": values})
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, auth.ContextCreate, nil, http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, auth.ContextUpdate, r.PathValue("resourceId"), http.StatusOK)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, fallback auth.Context, id any, status int) {
	req, t, err := s.request(r, fallback)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	input, err := readRecord(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.saver.Save(r.Context(), req, t, id, input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, map[string]any{"id": saved})
}

// handlePage renders the stored field values for page consumers. The
// template query parameter is handed to each field's response resolver.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	req, t, err := s.request(r, auth.ContextDetail)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.saver.Load(r.Context(), t, r.PathValue("resourceId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	template := r.URL.Query().Get("template")
	values := map[string]any{}
	for _, f := range t.Fields.Fields() {
		if !f.IsVisible(req) {
			continue
		}
		v, err := f.ResolveResponseValue(rec[f.Attribute()], template)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		values[f.Attribute()] = v
	}
	writeJSON(w, http.StatusOK, values)
}

// request builds the authorization request for the resource in the path.
// The context query parameter overrides fallback.
func (s *Server) request(r *http.Request, fallback auth.Context) (auth.Request, *resource.Type, error) {
	t, err := s.catalog.ByKey(r.PathValue("resource"))
	if err != nil {
		return auth.Request{}, nil, err
	}
	ctx := fallback
	if raw := r.URL.Query().Get("context"); raw != "" {
		ctx = auth.ParseContext(raw)
	}
	return auth.Request{
		Context:   ctx,
		Principal: principalFrom(r.Context()),
		Resource:  t.Key,
		Model:     t.ModelName(),
	}, t, nil
}

func readRecord(w http.ResponseWriter, r *http.Request) (record.Record, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	doc, err := record.DecodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: body must be a JSON object", errBadRequest)
	}
	return record.Record(obj), nil
}
