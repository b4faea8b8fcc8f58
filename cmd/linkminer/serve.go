package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/cognicore/linkminer/pkg/linkminer"
	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/tagging"
)

const maxRequestBytes = 1 << 20

func (c *cli) newServeCommand() *cobra.Command {
	var (
		addr    string
		workers int
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve wikification and relatedness over HTTP",
		Example: `  linkminer serve -c linkminer.yaml --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			comp, err := c.load(ctx)
			if err != nil {
				return err
			}
			defer comp.Close()

			pool := make(chan *linkminer.Wikifier, max(workers, 1))
			for range cap(pool) {
				w, err := c.wikifier(comp, true, true)
				if err != nil {
					return err
				}
				pool <- w
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           newServer(pool, c.logger).routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				c.shutdown(srv, 10*time.Second)
			}()

			c.logger.Info("listening", "addr", addr, "workers", cap(pool))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Requests processed in parallel")
	return cmd
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops srv, waiting at most timeout for requests in flight.
func (c *cli) shutdown(srv shutdowner, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		c.logger.Warn("shutdown", "err", err)
	}
}

// server answers HTTP requests with wikifiers borrowed from a pool.
type server struct {
	pool   chan *linkminer.Wikifier
	logger *slog.Logger
}

func newServer(pool chan *linkminer.Wikifier, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{pool: pool, logger: logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /wikify", s.handleWikify)
	mux.HandleFunc("GET /compare", s.handleCompare)
	mux.HandleFunc("GET /relatedness", s.handleRelatedness)
	mux.HandleFunc("GET /search", s.handleSearch)
	return s.withRequestID(mux)
}

type ctxKey struct{}

func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
		s.logger.Debug("request", "id", id, "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// borrow takes a wikifier from the pool, waiting until one is free.
func (s *server) borrow(ctx context.Context) (*linkminer.Wikifier, func(), error) {
	select {
	case w := <-s.pool:
		return w, func() { s.pool <- w }, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

type wikifyRequest struct {
	Text           string   `json:"text"`
	Source         string   `json:"source,omitempty"`
	MinProbability *float64 `json:"min_probability,omitempty"`
	RepeatMode     string   `json:"repeat_mode,omitempty"`
	BannedTopics   string   `json:"banned_topics,omitempty"`
	BaseURL        string   `json:"base_url,omitempty"`
}

type span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type topicJSON struct {
	ID                       int     `json:"id"`
	Title                    string  `json:"title"`
	Weight                   float64 `json:"weight"`
	Occurrences              int     `json:"occurrences"`
	RelatednessToContext     float64 `json:"relatedness_to_context"`
	RelatednessToOtherTopics float64 `json:"relatedness_to_other_topics"`
	Positions                []span  `json:"positions"`
}

type wikifyResponse struct {
	RequestID     string      `json:"request_id"`
	Markup        string      `json:"markup"`
	Format        string      `json:"format"`
	DocumentScore float64     `json:"document_score"`
	Topics        []topicJSON `json:"topics"`
}

type senseJSON struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type compareResponse struct {
	RequestID   string     `json:"request_id"`
	A           string     `json:"a"`
	B           string     `json:"b"`
	Found       bool       `json:"found"`
	Relatedness float64    `json:"relatedness"`
	SenseA      *senseJSON `json:"sense_a,omitempty"`
	SenseB      *senseJSON `json:"sense_b,omitempty"`
}

type relatednessResponse struct {
	RequestID   string  `json:"request_id"`
	A           int     `json:"a"`
	B           int     `json:"b"`
	Relatedness float64 `json:"relatedness"`
}

type weightedSenseJSON struct {
	ID    int     `json:"id"`
	Title string  `json:"title"`
	Kind  string  `json:"kind"`
	Prior float64 `json:"prior"`
}

type senseSearchResponse struct {
	RequestID       string              `json:"request_id"`
	Term            string              `json:"term"`
	LinkProbability float64             `json:"link_probability"`
	Senses          []weightedSenseJSON `json:"senses"`
}

type neighbourJSON struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Count int64  `json:"count"`
}

type neighbourSearchResponse struct {
	RequestID string          `json:"request_id"`
	ID        int             `json:"id"`
	Title     string          `json:"title"`
	Kind      string          `json:"kind"`
	InLinks   []int           `json:"in_links"`
	OutLinks  []neighbourJSON `json:"out_links"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

func (s *server) handleWikify(w http.ResponseWriter, r *http.Request) {
	var req wikifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, fmt.Errorf("decode request: %v: %w", err, internalerr.ErrInvalidInput))
		return
	}

	wk, release, err := s.borrow(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer release()

	opts := wk.Defaults()
	if req.Source != "" {
		opts.Source = req.Source
	}
	if req.MinProbability != nil {
		opts.MinProbability = *req.MinProbability
	}
	if req.RepeatMode != "" {
		mode, err := tagging.ParseRepeatMode(req.RepeatMode)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%v: %w", err, internalerr.ErrInvalidInput))
			return
		}
		opts.RepeatMode = mode
	}
	if req.BaseURL != "" {
		opts.BaseURL = req.BaseURL
	}
	opts.BannedTopics = req.BannedTopics

	res, err := wk.Wikify(req.Text, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := wikifyResponse{
		RequestID:     requestID(r),
		Markup:        res.Markup,
		Format:        res.Format.String(),
		DocumentScore: res.DocumentScore,
		Topics:        make([]topicJSON, 0, len(res.Topics)),
	}
	for _, t := range res.Topics {
		resp.Topics = append(resp.Topics, newTopicJSON(t))
	}
	s.write(w, http.StatusOK, resp)
}

func newTopicJSON(t *annotate.Topic) topicJSON {
	out := topicJSON{
		ID:                       t.ID,
		Title:                    t.Title,
		Weight:                   t.Weight,
		Occurrences:              t.Occurrences(),
		RelatednessToContext:     t.RelatednessToContext,
		RelatednessToOtherTopics: t.RelatednessToOtherTopics,
		Positions:                make([]span, 0, t.Occurrences()),
	}
	for _, p := range t.Positions() {
		out.Positions = append(out.Positions, span{Start: p.Start, End: p.End})
	}
	return out
}

func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		s.fail(w, r, fmt.Errorf("both a and b are required: %w", internalerr.ErrInvalidInput))
		return
	}

	wk, release, err := s.borrow(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer release()

	cmp := wk.Disambiguator().Engine().CompareTerms(a, b)
	resp := compareResponse{
		RequestID:   requestID(r),
		A:           a,
		B:           b,
		Found:       cmp.Found,
		Relatedness: cmp.Relatedness,
	}
	if cmp.Found {
		resp.SenseA = &senseJSON{ID: cmp.SenseA.ID, Title: cmp.SenseA.Title}
		resp.SenseB = &senseJSON{ID: cmp.SenseB.ID, Title: cmp.SenseB.Title}
	}
	s.write(w, http.StatusOK, resp)
}

func (s *server) handleRelatedness(w http.ResponseWriter, r *http.Request) {
	a, errA := strconv.Atoi(r.URL.Query().Get("a"))
	b, errB := strconv.Atoi(r.URL.Query().Get("b"))
	if errA != nil || errB != nil {
		s.fail(w, r, fmt.Errorf("a and b must be article ids: %w", internalerr.ErrInvalidInput))
		return
	}

	wk, release, err := s.borrow(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer release()

	for _, id := range []int{a, b} {
		if _, ok := wk.KnowledgeBase().Page(id); !ok {
			s.fail(w, r, fmt.Errorf("article %d: %w", id, internalerr.ErrNotFound))
			return
		}
	}
	s.write(w, http.StatusOK, relatednessResponse{
		RequestID:   requestID(r),
		A:           a,
		B:           b,
		Relatedness: wk.Disambiguator().Engine().Relatedness(a, b),
	})
}

// handleSearch lists the senses of a term, or the link neighbours of an
// article id.
func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term, rawID := r.URL.Query().Get("term"), r.URL.Query().Get("id")
	if (term == "") == (rawID == "") {
		s.fail(w, r, fmt.Errorf("exactly one of term and id is required: %w", internalerr.ErrInvalidInput))
		return
	}

	wk, release, err := s.borrow(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer release()
	k := wk.KnowledgeBase()

	if term != "" {
		a, ok := k.Anchor(term)
		if !ok {
			s.fail(w, r, fmt.Errorf("term %q: %w", term, internalerr.ErrNotFound))
			return
		}
		resp := senseSearchResponse{
			RequestID:       requestID(r),
			Term:            term,
			LinkProbability: a.LinkProbability(),
			Senses:          make([]weightedSenseJSON, 0, len(a.Senses)),
		}
		for _, sense := range a.Senses {
			resp.Senses = append(resp.Senses, weightedSenseJSON{
				ID:    sense.ID,
				Title: sense.Title,
				Kind:  sense.Kind.String(),
				Prior: sense.Prior,
			})
		}
		s.write(w, http.StatusOK, resp)
		return
	}

	id, err := strconv.Atoi(rawID)
	if err != nil {
		s.fail(w, r, fmt.Errorf("id must be an article id: %w", internalerr.ErrInvalidInput))
		return
	}
	page, ok := k.Page(id)
	if !ok {
		s.fail(w, r, fmt.Errorf("article %d: %w", id, internalerr.ErrNotFound))
		return
	}
	resp := neighbourSearchResponse{
		RequestID: requestID(r),
		ID:        page.ID,
		Title:     page.Title,
		Kind:      page.Kind.String(),
		InLinks:   append([]int{}, k.InLinks(id)...),
		OutLinks:  []neighbourJSON{},
	}
	for _, l := range k.OutLinks(id) {
		n := neighbourJSON{ID: l.ID, Count: l.Count}
		if p, ok := k.Page(l.ID); ok {
			n.Title = p.Title
		}
		resp.OutLinks = append(resp.OutLinks, n)
	}
	s.write(w, http.StatusOK, resp)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, internalerr.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, internalerr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, internalerr.ErrNotTrained):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "id", requestID(r), "err", err)
	} else {
		s.logger.Debug("request rejected", "id", requestID(r), "status", status, "err", err)
	}
	s.write(w, status, errorResponse{RequestID: requestID(r), Error: err.Error()})
}

func (s *server) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "err", err)
	}
}
