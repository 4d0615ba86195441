package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/runstore"
)

// Request limits shared by validation and /api/config
const (
	minPatchSize = 20
	maxPatchSize = 400
	maxHeight    = 10000.0
	maxOffset    = 4000.0
)

// Server handles web requests for the light estimator
type Server struct {
	port   int
	config config.Config
	store  *runstore.Store
}

// NewServer creates a new web server solving with cfg
func NewServer(port int, cfg config.Config) *Server {
	return &Server{port: port, config: cfg}
}

// WithStore records every completed solve in store
func (s *Server) WithStore(store *runstore.Store) *Server {
	s.store = store
	return s
}

// SolveRequest represents a solve request from the client
type SolveRequest struct {
	PatchSize  int                        `json:"patchSize"`
	X          float64                    `json:"x"`
	Y          float64                    `json:"y"`
	Height     float64                    `json:"height"`
	Albedo     [config.PatchCount]float64 `json:"albedo"`
	LightOn    bool                       `json:"lightOn"`
	Noise      bool                       `json:"noise"`
	NoiseSigma float64                    `json:"noiseSigma"`
	BoundCheck bool                       `json:"boundCheck"`
	Record     bool                       `json:"record"`
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Serve static files
	mux.Handle("/", http.FileServer(http.Dir("static/")))

	// API endpoints
	mux.HandleFunc("/api/solve", s.handleSolve)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/config", s.handleConfig)
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("Starting web server on http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// parseSolveRequest parses request parameters on top of the server defaults
func (s *Server) parseSolveRequest(r *http.Request) (*SolveRequest, error) {
	q := r.URL.Query()
	req := &SolveRequest{Albedo: defaultAlbedo()}

	var err error
	if req.PatchSize, err = parseIntParam(q, "patchSize", s.config.Grid.PatchSize, minPatchSize, maxPatchSize); err != nil {
		return nil, err
	}
	center := float64(req.PatchSize*3) / 2
	if req.X, err = parseFloatParam(q, "x", center, -maxOffset, maxOffset); err != nil {
		return nil, err
	}
	if req.Y, err = parseFloatParam(q, "y", center, -maxOffset, maxOffset); err != nil {
		return nil, err
	}
	if req.Height, err = parseFloatParam(q, "height", 500, 0, maxHeight); err != nil {
		return nil, err
	}
	if req.NoiseSigma, err = parseFloatParam(q, "noiseSigma", s.config.Render.NoiseSigma, 0, 0.5); err != nil {
		return nil, err
	}
	if req.LightOn, err = parseBoolParam(q, "lightOn", true); err != nil {
		return nil, err
	}
	if req.Noise, err = parseBoolParam(q, "noise", s.config.Render.Noise); err != nil {
		return nil, err
	}
	if req.BoundCheck, err = parseBoolParam(q, "boundCheck", s.config.Location.BoundCheck); err != nil {
		return nil, err
	}
	if req.Record, err = parseBoolParam(q, "record", false); err != nil {
		return nil, err
	}

	if value := q.Get("albedo"); value != "" {
		parts := strings.Split(value, ",")
		if len(parts) != config.PatchCount {
			return nil, fmt.Errorf("albedo needs %d values, got %d", config.PatchCount, len(parts))
		}
		for i, part := range parts {
			a, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil || a <= 0 || a > 1 {
				return nil, fmt.Errorf("albedo %d must be in (0, 1], got: %s", i+1, part)
			}
			req.Albedo[i] = a
		}
	}
	return req, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %f and %f, got: %f", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseBoolParam parses a boolean parameter from URL query
func parseBoolParam(values url.Values, key string, defaultValue bool) (bool, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %s", key, value)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// handleConfig returns the solver defaults with validation limits
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	response := map[string]interface{}{
		"config":        s.config,
		"defaultAlbedo": defaultAlbedo(),
		"limits": map[string]interface{}{
			"patchSize": map[string]int{
				"min": minPatchSize,
				"max": maxPatchSize,
			},
			"height": map[string]float64{
				"min": 0,
				"max": maxHeight,
			},
			"x": map[string]float64{
				"min": -maxOffset,
				"max": maxOffset,
			},
			"y": map[string]float64{
				"min": -maxOffset,
				"max": maxOffset,
			},
			"noiseSigma": map[string]float64{
				"min": 0,
				"max": 0.5,
			},
		},
		"recording": s.store != nil,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
