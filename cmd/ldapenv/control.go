package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/giantswarm/ldapenv"
)

// maxBodySize caps LDIF accepted by the control API.
const maxBodySize = 4 << 20

// ControlServer exposes a running directory over HTTP so that test
// harnesses written in other languages can seed it.
type ControlServer struct {
	srv http.Server

	addr string
	log  *zap.Logger
	dir  ldapenv.Server
}

// Info is the body of GET /info.
type Info struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	TLSURL       string `json:"tls_url,omitempty"`
	BaseDN       string `json:"base_dn"`
	RootDN       string `json:"root_dn"`
	RootPassword string `json:"root_password"`
	Dir          string `json:"dir"`
	State        string `json:"state"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  uint16 `json:"code,omitempty"`
}

// NewControlServer returns a ControlServer that applies LDIF to dir and
// listens on addr once ListenAndServe is called.
func NewControlServer(log *zap.Logger, addr string, dir ldapenv.Server) *ControlServer {
	s := &ControlServer{
		addr: addr,
		log:  log.Named("control"),
		dir:  dir,
	}
	s.initHandlers()
	return s
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *ControlServer) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP serve: %w", err)
		}
		close(serveErr)
	}()

	s.log.Info("control API started", zap.String("addr", lis.Addr().String()))
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutdown...")

	ctxTimeout, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	return s.srv.Shutdown(ctxTimeout) //nolint:wrapcheck // shutdown error is final
}

func (s *ControlServer) initHandlers() {
	router := httprouter.New()

	router.GET("/info", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, Info{
			ID:           s.dir.ID(),
			URL:          s.dir.URL(),
			TLSURL:       s.dir.TLSURL(),
			BaseDN:       s.dir.BaseDN(),
			RootDN:       s.dir.RootDN(),
			RootPassword: s.dir.RootPassword(),
			Dir:          s.dir.Dir(),
			State:        s.dir.State().String(),
		})
	})

	router.POST("/add", s.mutation("add", s.dir.Add))
	router.POST("/modify", s.mutation("modify", s.dir.Modify))
	router.POST("/delete", s.mutation("delete", s.dir.Delete))

	s.srv.Handler = router
}

func (s *ControlServer) mutation(name string, apply func(context.Context, string) error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		defer func() { _ = r.Body.Close() }()

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("read body: %v", err)})
			return
		}

		if err := apply(r.Context(), string(data)); err != nil {
			s.log.Warn(name+" request failed", zap.Error(err))
			status, body := errorResponse(err)
			writeJSON(w, status, body)
			return
		}
		s.log.Info(name + " request")
		w.WriteHeader(http.StatusNoContent)
	}
}

// errorResponse maps a mutation error to an HTTP status.
func errorResponse(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var mutErr *ldapenv.MutationError
	switch {
	case errors.Is(err, ldapenv.ErrInvalidLDIF):
		return http.StatusBadRequest, body
	case errors.Is(err, ldapenv.ErrServerClosed), errors.Is(err, ldapenv.ErrNotRunning):
		return http.StatusServiceUnavailable, body
	case errors.As(err, &mutErr) && mutErr.Code != 0:
		body.Code = mutErr.Code
		return http.StatusUnprocessableEntity, body
	default:
		return http.StatusBadGateway, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
