package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jsphweid/harmonia/composer"
	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/config"
	"github.com/jsphweid/harmonia/db"
	"github.com/jsphweid/harmonia/logger"
	"github.com/jsphweid/harmonia/model"
	"github.com/jsphweid/harmonia/strategy"
	"github.com/jsphweid/harmonia/util"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

var noArchive bool

func init() {
	serveCmd.Flags().BoolVar(&noArchive, "no-archive", false, "do not archive finished compositions in DynamoDB")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves compositions over HTTP",
	Long:  `Serves compositions over HTTP, one composer per session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var archive *db.Archive
		if !noArchive {
			var err error
			archive, err = db.New(cfg)
			if err != nil {
				return err
			}
		}
		return serve(cmd.Context(), NewServer(cfg, archive))
	},
}

func serve(ctx context.Context, s *Server) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Handler()}
	go s.ReapIdle(ctx, time.Minute)
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("serving", logger.Fields{"addr": s.cfg.Addr})
	err := srv.ListenAndServe()
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type session struct {
	composer *composer.Composer
	seen     time.Time
}

// Server holds one composer per session id.
type Server struct {
	cfg     *config.Config
	archive *db.Archive

	mu       sync.Mutex
	sessions map[string]*session
	created  int64
	upgrader websocket.Upgrader
}

// NewServer builds the HTTP API. A nil archive disables archiving.
func NewServer(cfg *config.Config, archive *db.Archive) *Server {
	return &Server{
		cfg:      cfg,
		archive:  archive,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Close finishes and archives every open session.
func (s *Server) Close() {
	s.mu.Lock()
	open := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for id, sess := range open {
		s.retire(context.Background(), id, sess.composer)
	}
}

// Reap finishes and archives sessions nobody touched for the idle timeout
// and returns their ids. A zero timeout keeps sessions forever.
func (s *Server) Reap(ctx context.Context, now time.Time) []string {
	if s.cfg.IdleTimeout == 0 {
		return nil
	}
	idle := make(map[string]*composer.Composer)
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.seen) >= s.cfg.IdleTimeout {
			idle[id] = sess.composer
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	ids := util.SortedKeys(idle)
	for _, id := range ids {
		logger.Info("reaping idle session", logger.Fields{"session": id})
		s.retire(ctx, id, idle[id])
	}
	return ids
}

// ReapIdle calls Reap every interval until ctx is done.
func (s *Server) ReapIdle(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Reap(ctx, now)
		}
	}
}

// retire finishes a session that is no longer in the map and archives it.
func (s *Server) retire(ctx context.Context, id string, c *composer.Composer) (composition.Composition, bool, error) {
	snap, err := c.FinishComposing()
	if err != nil {
		return snap, false, err
	}
	if s.archive == nil {
		return snap, false, nil
	}
	if err := s.archive.Put(ctx, snap); err != nil {
		logger.Error("could not archive composition", err, logger.Fields{
			"composition_id": snap.ID,
			"strategy":       snap.Strategy,
			"session":        id,
		})
		return snap, false, nil
	}
	return snap, true, nil
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(logRequests)
	router.HandleFunc("/compositions", s.HandleCreate).Methods("POST")
	router.HandleFunc("/compositions/{id}/next", s.HandleNext).Methods("GET")
	router.HandleFunc("/compositions/{id}/input", s.HandleInput).Methods("POST")
	router.HandleFunc("/compositions/{id}/finish", s.HandleFinish).Methods("POST")
	router.HandleFunc("/compositions/{id}/stream", s.HandleStream).Methods("GET")

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(router)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("could not encode response", logger.Fields{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, model.ErrorResponse{Error: err.Error()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *composer.Composer, bool) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.seen = time.Now()
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no composition %q", id))
		return id, nil, false
	}
	return id, sess.composer, true
}

func measureResponse(id string, c *composer.Composer, m *model.Measure) model.MeasureResponse {
	compID, _ := c.ID()
	kind, _ := c.Kind()
	return model.MeasureResponse{
		ID:            id,
		CompositionID: compID,
		Strategy:      kind.String(),
		Pending:       c.Pending(),
		Measure:       m,
	}
}

func (s *Server) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input model.CreateRequestBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("could not decode request body: %w", err))
			return
		}
	}
	name := input.Strategy
	if name == "" {
		name = s.cfg.Strategy
	}
	kind, err := strategy.ParseKind(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.created++
	var opts []composer.Option
	if s.cfg.Seed != 0 {
		opts = append(opts, composer.WithSeed(s.cfg.Seed+s.created))
	}
	s.mu.Unlock()

	c := composer.New(s.cfg, opts...)
	first, err := c.BeginComposing(kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = &session{composer: c, seen: time.Now()}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, measureResponse(id, c, first))
}

func (s *Server) HandleNext(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	m, err := c.WriteNextMeasure()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, measureResponse(id, c, m))
	case errors.Is(err, composer.ErrNotReady):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusAccepted, err)
	case errors.Is(err, composer.ErrStalled):
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeError(w, http.StatusConflict, err)
	}
}

func (s *Server) HandleInput(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	var input model.InputRequestBody
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("could not decode request body: %w", err))
		return
	}
	m, err := c.ReceiveInput(input.Command)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, measureResponse(id, c, m))
	case errors.Is(err, composer.ErrUnknownCommand):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) HandleFinish(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	snap, archived, err := s.retire(r.Context(), id, c)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, model.FinishResponse{
		ID:          snap.ID,
		Strategy:    snap.Strategy,
		Measures:    len(snap.Measures),
		Played:      snap.Played,
		Sections:    len(snap.Sections),
		Modulations: snap.Modulations(),
		Chords:      snap.ChordCounts(),
		Archived:    archived,
	})
}

// HandleStream pushes measures over a websocket on the bar clock until the
// client goes away, the composition stalls or ?limit measures were sent.
func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.session(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// reading is needed to notice the client closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	bar := s.cfg.MeasureDuration()
	for i := 1; limit == 0 || i <= limit; i++ {
		m, err := waitForMeasure(ctx, c)
		if err != nil {
			if ctx.Err() == nil {
				_ = conn.WriteJSON(model.StreamMessage{Index: i, Error: err.Error()})
			}
			return
		}
		if err := conn.WriteJSON(model.StreamMessage{Index: i, Measure: m}); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(bar):
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func waitForMeasure(ctx context.Context, c *composer.Composer) (*model.Measure, error) {
	for {
		m, err := c.WriteNextMeasure()
		if !errors.Is(err, composer.ErrNotReady) {
			return m, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.Ready():
		case <-time.After(10 * time.Millisecond):
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.LogRequest(r, time.Since(start), rec.status)
	})
}
