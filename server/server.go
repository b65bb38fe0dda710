// Package server hosts the provider side of the execution channel: an HTTP
// endpoint that accepts linearized remote operation programs, runs them on
// the in-process interpreter against a provider object registry, and
// reports its capability manifest.
package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/tliron/commonlog"

	"github.com/quartzui/remoteops/pkg/bytecode"
	"github.com/quartzui/remoteops/pkg/channel"
	"github.com/quartzui/remoteops/pkg/interp"
)

var log = commonlog.GetLogger("remoteops.server")

const (
	contentTypeCBOR = "application/cbor"
	maxRequestBytes = 64 << 20
)

// Server is the HTTP executor.
type Server struct {
	cfg      *Config
	store    *ObjectStore
	interp   *interp.Interpreter
	manifest *channel.Manifest

	httpSrv     *http.Server
	stopSweeper func()
}

// New assembles a server over the given object registry.
func New(cfg *Config, store *ObjectStore) *Server {
	policy := channel.NewPermissivePolicy()
	for _, c := range cfg.DeniedCapabilities {
		policy.Deny(c)
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		interp:   interp.New(store, interp.Options{MaxInstructions: cfg.MaxInstructions}),
		manifest: policy.Filter(channel.DefaultManifest()),
	}
	s.httpSrv = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the HTTP routing for the executor endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/execute", s.handleExecute)
	mux.HandleFunc("/v1/capabilities", s.handleCapabilities)
	return mux
}

// ListenAndServe starts the executor and blocks until it is shut down.
func (s *Server) ListenAndServe() error {
	if ttl := time.Duration(s.cfg.ObjectTTLSeconds) * time.Second; ttl > 0 {
		s.stopSweeper = s.store.StartSweeper(ttl/2, ttl)
	}
	log.Infof("listening on %s", s.cfg.Listen)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the background sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Header.Get("Content-Encoding") == "zstd" {
		if body, err = decompressZstd(body); err != nil {
			http.Error(w, "bad zstd body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	req, err := bytecode.UnmarshalRequest(body)
	if err != nil {
		log.Errorf("rejecting request: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := s.interp.Run(req)
	log.Infof("executed %d instructions in %s: %s",
		len(req.Instructions), time.Since(start).Round(time.Microsecond), resp.Status)

	raw, err := bytecode.MarshalResponse(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.write(w, r, raw)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, err := cbor.Marshal(s.manifest)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.write(w, r, raw)
}

// write sends a CBOR body, zstd-compressed when the client accepts it and
// the payload is big enough to benefit.
func (s *Server) write(w http.ResponseWriter, r *http.Request, raw []byte) {
	w.Header().Set("Content-Type", contentTypeCBOR)
	if len(raw) >= 512 && strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") {
		compressed, err := compressZstd(raw)
		if err == nil {
			w.Header().Set("Content-Encoding", "zstd")
			raw = compressed
		}
	}
	if _, err := w.Write(raw); err != nil {
		log.Errorf("writing response: %v", err)
	}
}

func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}
