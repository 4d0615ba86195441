package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/estimator"
	"github.com/df07/go-light-estimator/pkg/photometry"
	"github.com/df07/go-light-estimator/pkg/renderer"
	"github.com/df07/go-light-estimator/pkg/runstore"
	"github.com/df07/go-light-estimator/pkg/scene"
	"github.com/df07/go-light-estimator/pkg/scoring"
)

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "render", "locate", "height", "albedo", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// RenderUpdate is sent once the synthetic photograph is ready
type RenderUpdate struct {
	ImageData string  `json:"imageData"` // Base64 encoded PNG
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Mean      float64 `json:"mean"`
	Clamped   int     `json:"clamped"`
	ElapsedMs int64   `json:"elapsedMs"`
}

// LocateUpdate reports the location stage
type LocateUpdate struct {
	Found      bool                  `json:"found"`
	X          int                   `json:"x"`
	Y          int                   `json:"y"`
	Votes      int                   `json:"votes"`
	TotalVotes int                   `json:"totalVotes"`
	Clusters   int                   `json:"clusters"`
	Top        []estimator.Candidate `json:"top"`
}

// HeightUpdate reports the height stage
type HeightUpdate struct {
	Found      bool                 `json:"found"`
	Height     float64              `json:"height"`
	Confidence float64              `json:"confidence"`
	Probes     []estimator.RayProbe `json:"probes"`
}

// AlbedoUpdate reports the albedo stage
type AlbedoUpdate struct {
	Found     bool                       `json:"found"`
	Albedo    [config.PatchCount]float64 `json:"albedo"`
	Brightest int                        `json:"brightest"`
	Dimmest   int                        `json:"dimmest"`
	Complete  bool                       `json:"complete"`
	Ratios    [][]float64                `json:"ratios"`
}

// CompleteUpdate carries the final solution and its errors against the truth
type CompleteUpdate struct {
	RenderID  string              `json:"renderId"`
	Solution  string              `json:"solution"`
	Truth     string              `json:"truth"`
	Errors    *scoring.Comparison `json:"errors,omitempty"`
	ElapsedMs int64               `json:"elapsedMs"`
}

func defaultAlbedo() [config.PatchCount]float64 {
	return scene.DefaultAlbedo
}

// handleSolve renders the requested scene, solves it and streams every stage via SSE
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	s.setSSEHeaders(w)

	ctx := r.Context()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(w, ctx, sseEventChan)
	}()
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	req, err := s.parseSolveRequest(r)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	// Setup console logging and streaming
	renderID, consoleChan, webLogger := s.setupConsoleLogging()
	var consoleWG sync.WaitGroup
	consoleWG.Add(1)
	go func() {
		defer consoleWG.Done()
		s.streamConsoleMessages(ctx, consoleChan, sseEventChan)
	}()

	complete, err := s.runPipeline(ctx, sseEventChan, req, renderID, webLogger)

	// Console messages are flushed before the final event
	close(consoleChan)
	consoleWG.Wait()

	if err != nil {
		s.handleError(ctx, sseEventChan, err.Error())
		return
	}
	s.sendEvent(ctx, sseEventChan, "complete", complete)
}

// runPipeline runs Render -> Locate -> Height -> Albedo and sends one event per stage
func (s *Server) runPipeline(ctx context.Context, sseEventChan chan SSEEvent, req *SolveRequest, renderID string, logger core.Logger) (CompleteUpdate, error) {
	startTime := time.Now()
	cfg := s.requestConfig(req)
	if err := cfg.Validate(); err != nil {
		return CompleteUpdate{}, err
	}

	light := scene.NewLightSource(core.NewPoint(req.X, req.Y), req.Height)
	light.On = req.LightOn
	light.Albedo = req.Albedo
	if err := light.Validate(); err != nil {
		return CompleteUpdate{}, err
	}

	img, stats := renderer.NewRenderer(cfg, logger).Render(light)
	imageData, err := imageToBase64PNG(img)
	if err != nil {
		return CompleteUpdate{}, fmt.Errorf("failed to encode image: %w", err)
	}
	s.sendEvent(ctx, sseEventChan, "render", RenderUpdate{
		ImageData: imageData,
		Width:     img.Width,
		Height:    img.Height,
		Mean:      stats.Mean,
		Clamped:   stats.ClampedPixels,
		ElapsedMs: time.Since(startTime).Milliseconds(),
	})

	sol, err := estimator.NewSolver(cfg, logger).Solve(img)
	if err != nil {
		return CompleteUpdate{}, err
	}
	s.sendStageEvents(ctx, sseEventChan, sol)

	truth := scoring.FromLight(light)
	complete := CompleteUpdate{
		RenderID:  renderID,
		Solution:  scoring.FromSolution(sol).String(),
		Truth:     truth.String(),
		ElapsedMs: time.Since(startTime).Milliseconds(),
	}
	if sol.HasLocation && sol.HasHeight && sol.HasAlbedo {
		c := scoring.Compare(truth, scoring.FromSolution(sol), scene.NewGrid(cfg.Grid).Diagonal())
		complete.Errors = &c
	}

	if req.Record && s.store != nil {
		if err := s.record(renderID, cfg, sol, complete, time.Since(startTime)); err != nil {
			logger.Printf("Failed to record run: %v\n", err)
		}
	}
	return complete, nil
}

// requestConfig applies the request overrides to the server config
func (s *Server) requestConfig(req *SolveRequest) config.Config {
	cfg := s.config
	cfg.Grid.PatchSize = req.PatchSize
	cfg.Render.Noise = req.Noise
	cfg.Render.NoiseSigma = req.NoiseSigma
	cfg.Location.BoundCheck = req.BoundCheck
	return cfg
}

// sendStageEvents sends the locate, height and albedo events of one solution
func (s *Server) sendStageEvents(ctx context.Context, sseEventChan chan SSEEvent, sol estimator.Solution) {
	locate := LocateUpdate{Found: sol.Stages.Location != nil, X: sol.Location.X, Y: sol.Location.Y}
	if loc := sol.Stages.Location; loc != nil {
		locate.Votes = loc.Votes
		locate.TotalVotes = loc.TotalVotes
		locate.Clusters = loc.Clusters
		locate.Top = loc.Top
	}
	s.sendEvent(ctx, sseEventChan, "locate", locate)

	height := HeightUpdate{Found: sol.Stages.Height != nil, Height: sol.Height}
	if h := sol.Stages.Height; h != nil {
		height.Confidence = h.Confidence
		height.Probes = h.Probes
	}
	s.sendEvent(ctx, sseEventChan, "height", height)

	albedo := AlbedoUpdate{
		Found:     sol.HasAlbedo,
		Albedo:    sol.Albedo,
		Brightest: sol.Brightest,
		Dimmest:   sol.Dimmest,
	}
	if a := sol.Stages.Albedo; a != nil {
		albedo.Complete = a.Complete
		rows, cols := a.Ratios.Dims()
		albedo.Ratios = make([][]float64, rows)
		for i := range albedo.Ratios {
			albedo.Ratios[i] = make([]float64, cols)
			for j := range albedo.Ratios[i] {
				albedo.Ratios[i][j] = a.Ratios.At(i, j)
			}
		}
	}
	s.sendEvent(ctx, sseEventChan, "albedo", albedo)
}

// record stores a finished solve in the run database
func (s *Server) record(renderID string, cfg config.Config, sol estimator.Solution, complete CompleteUpdate, duration time.Duration) error {
	run := &runstore.Run{
		ID:          renderID,
		Mode:        "web",
		PatchSize:   cfg.Grid.PatchSize,
		Truth:       complete.Truth,
		Estimate:    complete.Solution,
		HasLocation: sol.HasLocation,
		HasHeight:   sol.HasHeight,
		HasAlbedo:   sol.HasAlbedo,
		Duration:    duration,
	}
	if complete.Errors != nil {
		run.LocationError = sql.NullFloat64{Float64: complete.Errors.LocationError, Valid: true}
		run.HeightError = sql.NullFloat64{Float64: complete.Errors.HeightError, Valid: true}
		run.MaxAlbedoError = sql.NullFloat64{Float64: complete.Errors.MaxAlbedoError, Valid: true}
	}
	return s.store.Record(run)
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(w http.ResponseWriter, ctx context.Context, sseEventChan chan SSEEvent) {
	for {
		select {
		case event, ok := <-sseEventChan:
			if !ok {
				// Channel closed
				return
			}

			// Write SSE event
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				// Client disconnected during write
				drain(sseEventChan)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-ctx.Done():
			// Client disconnected
			drain(sseEventChan)
			return
		}
	}
}

// drain discards events until the channel is closed so senders never block
func drain(sseEventChan chan SSEEvent) {
	for range sseEventChan {
	}
}

// streamConsoleMessages forwards console messages until consoleChan is closed
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan chan ConsoleMessage, sseEventChan chan SSEEvent) {
	for consoleMsg := range consoleChan {
		data, err := json.Marshal(consoleMsg)
		if err != nil {
			log.Printf("Error marshaling console message: %v", err)
			continue
		}

		select {
		case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
		case <-ctx.Done():
		}
	}
}

// sendEvent marshals payload and queues it as an SSE event
func (s *Server) sendEvent(ctx context.Context, sseEventChan chan SSEEvent, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("failed to encode %s event: %v", eventType, err))
		return
	}
	select {
	case sseEventChan <- SSEEvent{Type: eventType, Data: string(data)}:
	case <-ctx.Done():
	}
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}

// imageToBase64PNG converts the display encoding of an image to base64-encoded PNG
func imageToBase64PNG(img *core.LinearImage) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, photometry.ToGray(img)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
