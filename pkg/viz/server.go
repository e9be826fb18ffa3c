package viz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/norasector/irdecode/pkg/capture"
	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/analysis"
	"github.com/norasector/irdecode/pkg/ir/match"
	"github.com/norasector/irdecode/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultRecent  = 64
	maxRequestBody = 1 << 20
)

// Decoder is what the decode endpoint dispatches to.
type Decoder interface {
	Decode(c *ir.Capture) (ir.Result, error)
	DecodeAs(p ir.Protocol, c *ir.Capture, opts ir.Options) (ir.Result, error)
	Protocols() []ir.Protocol
}

// History looks up older records, typically a *store.Store.
type History interface {
	Recent(n int) ([]*store.Record, error)
	Get(id uint64) (*store.Record, error)
}

type Server struct {
	mu        sync.RWMutex
	port      int
	srv       *http.Server
	decoder   Decoder
	history   History
	recent    []*store.Record
	maxRecent int
	images    map[string][]byte
	build     capture.Builder
	opts      ir.Options
	logger    zerolog.Logger
}

type ServerOption func(s *Server)

func WithHistory(h History) ServerOption {
	return func(s *Server) {
		s.history = h
	}
}

func WithCaptureBuilder(build capture.Builder) ServerOption {
	return func(s *Server) {
		s.build = build
	}
}

func WithServerLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDecodeOptions sets the options single-protocol decodes start from.
// Their tolerance also clusters the summaries of unknown captures.
func WithDecodeOptions(opts ir.Options) ServerOption {
	return func(s *Server) {
		s.opts = opts
	}
}

func NewServer(port int, decoder Decoder, opts ...ServerOption) *Server {
	s := &Server{
		port:      port,
		decoder:   decoder,
		maxRecent: defaultRecent,
		images:    make(map[string][]byte),
		build:     capture.NewCapture,
		opts:      ir.Options{Strict: true},
		srv:       &http.Server{Addr: fmt.Sprintf(":%d", port)},
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv.Handler = s.Handler()
	return s
}

// Publish makes rec visible on the recent page.
func (s *Server) Publish(rec *store.Record) {
	s.mu.Lock()
	s.recent = append(s.recent, rec)
	if len(s.recent) > s.maxRecent {
		drop := len(s.recent) - s.maxRecent
		for _, old := range s.recent[:drop] {
			delete(s.images, imageKey("pulse", old.ID))
			delete(s.images, imageKey("hist", old.ID))
		}
		s.recent = s.recent[drop:]
	}
	s.mu.Unlock()
}

func imageKey(kind string, id uint64) string {
	return fmt.Sprintf("%s/%d", kind, id)
}

// Recent returns up to n records, newest first, preferring the history.
func (s *Server) Recent(n int) ([]*store.Record, error) {
	if s.history != nil {
		return s.history.Recent(n)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*store.Record, 0, n)
	for i := len(s.recent) - 1; i >= 0 && len(ret) < n; i-- {
		ret = append(ret, s.recent[i])
	}
	return ret, nil
}

func (s *Server) tolerance() int {
	if s.opts.Tolerance > 0 {
		return s.opts.Tolerance
	}
	return match.DefaultTolerance
}

// lookup also reports whether the record is still in the recent window.
func (s *Server) lookup(id uint64) (*store.Record, bool, error) {
	s.mu.RLock()
	for _, rec := range s.recent {
		if rec.ID == id {
			s.mu.RUnlock()
			return rec, true, nil
		}
	}
	s.mu.RUnlock()
	if s.history != nil {
		rec, err := s.history.Get(id)
		return rec, false, err
	}
	return nil, false, store.ErrNotFound
}

func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("viz server starting")
	err := s.srv.ListenAndServe()
	switch {
	case err == http.ErrServerClosed:
		return nil
	default:
		return err
	}
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Location", "/view")
		w.WriteHeader(http.StatusFound)
	})
	handler.GET("/view", s.handleView)
	handler.GET("/protocols", s.handleProtocols)
	handler.GET("/records", s.handleRecords)
	handler.GET("/records/:id", s.handleRecord)
	handler.GET("/img/:kind/:id", s.handleImage)
	handler.POST("/decode", s.handleDecode)

	return handler
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	recs, err := s.Recent(s.maxRecent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Add("Content-Type", "text/html")
	w.Write([]byte(`<html><head><title>irdecode</title></head>`))
	w.Write([]byte(`<body style='background-color: black; color: white; font-family: monospace'>`))
	w.Write([]byte(`<div style="display: flex; flex-direction: column">`))
	for _, rec := range recs {
		text := rec.Error
		if rec.Result != nil {
			text = rec.Result.String()
		}
		w.Write([]byte(fmt.Sprintf(`<div><pre>#%d %s %s
%s</pre><img src="/img/pulse/%d" /></div>`,
			rec.ID, rec.Time.Format(time.RFC3339), html.EscapeString(rec.Source), html.EscapeString(text), rec.ID)))
	}
	w.Write([]byte(`</div></body></html>`))
}

func (s *Server) handleProtocols(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.decoder.Protocols())
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	n := s.maxRecent
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("bad record count %q", v))
			return
		}
		n = parsed
	}
	recs, err := s.Recent(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) recordParam(w http.ResponseWriter, params httprouter.Params) (rec *store.Record, recent bool, ok bool) {
	id, err := strconv.ParseUint(params.ByName("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad record id %q", params.ByName("id")))
		return nil, false, false
	}
	rec, recent, err = s.lookup(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return nil, false, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return nil, false, false
	}
	return rec, recent, true
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if rec, _, ok := s.recordParam(w, params); ok {
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	kind := params.ByName("kind")
	if kind != "pulse" && kind != "hist" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rec, recent, ok := s.recordParam(w, params)
	if !ok {
		return
	}

	key := imageKey(kind, rec.ID)
	s.mu.RLock()
	img, ok := s.images[key]
	s.mu.RUnlock()

	if !ok {
		title := fmt.Sprintf("#%d", rec.ID)
		if rec.Result != nil {
			title = fmt.Sprintf("#%d %s %s", rec.ID, rec.Result.Protocol, rec.Result.Hex())
		}
		var err error
		if kind == "hist" {
			img, err = Histogram(title, rec.Capture(), 32)
		} else {
			img, err = PulseTrain(title, rec.Capture())
		}
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		// Only records in the recent window are cached; Publish evicts the rest.
		if recent {
			s.mu.Lock()
			s.images[key] = img
			s.mu.Unlock()
		}
	}

	w.Header().Add("Content-Type", "image/png")
	w.Write(img)
}

// handleDecode decodes the capture text in the request body. The optional
// protocol, bits and strict query parameters decode as a single protocol.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, err := capture.Parse(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c := s.build(entries)

	rec := &store.Record{
		Time:    time.Now(),
		Source:  "http:" + r.RemoteAddr,
		Entries: c.Window(),
		Tick:    c.Tick,
	}

	var res ir.Result
	q := r.URL.Query()
	if name := q.Get("protocol"); name != "" {
		proto, perr := ir.ParseProtocol(name)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr)
			return
		}
		opts := s.opts
		if strict := q.Get("strict"); strict != "" {
			if opts.Strict, err = strconv.ParseBool(strict); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("bad strict %q", strict))
				return
			}
		}
		if bits := q.Get("bits"); bits != "" {
			if opts.Bits, err = strconv.Atoi(bits); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("bad bits %q", bits))
				return
			}
		}
		res, err = s.decoder.DecodeAs(proto, c, opts)
	} else {
		res, err = s.decoder.Decode(c)
	}

	if err != nil {
		rec.Error = err.Error()
		summary := analysis.Summarize(c, s.tolerance())
		rec.Summary = &summary
		writeJSON(w, http.StatusUnprocessableEntity, rec)
		return
	}
	rec.Result = &res
	writeJSON(w, http.StatusOK, rec)
}
