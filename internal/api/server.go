// Package api exposes the inspection engine over REST/JSON.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/panelsight/backend/internal/inspection"
	"github.com/panelsight/backend/internal/product"
	"github.com/panelsight/backend/internal/roi"
	"github.com/panelsight/backend/internal/schema"
	"github.com/panelsight/backend/internal/session"
)

// APIServer wires the session manager and the inspection coordinator to HTTP.
type APIServer struct {
	sessions    *session.Manager
	coordinator *inspection.Coordinator
	logger      *log.Logger
	started     time.Time
}

func NewAPIServer(sessions *session.Manager, coordinator *inspection.Coordinator) *APIServer {
	return &APIServer{
		sessions:    sessions,
		coordinator: coordinator,
		logger:      log.New(log.Writer(), "[API] ", log.LstdFlags),
		started:     time.Now(),
	}
}

// Router builds the route table; split out from Start for httptest use.
func (s *APIServer) Router() *mux.Router {
	r := mux.NewRouter()

	// CORS middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if req.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	// OPTIONS is listed everywhere so preflights reach the middleware instead
	// of mux's 405 handler.
	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET", "OPTIONS")

	r.HandleFunc("/session/create", s.handleSessionCreate).Methods("POST", "OPTIONS")
	r.HandleFunc("/session/list", s.handleSessionList).Methods("GET", "OPTIONS")
	r.HandleFunc("/session/{id}/status", s.handleSessionStatus).Methods("GET", "OPTIONS")
	r.HandleFunc("/session/{id}/close", s.handleSessionClose).Methods("POST", "OPTIONS")
	r.HandleFunc("/session/{id}/inspect", s.handleInspect).Methods("POST", "OPTIONS")
	r.HandleFunc("/session/{id}/process_grouped_inspection", s.handleGrouped).Methods("POST", "OPTIONS")

	r.HandleFunc("/schema/roi", s.handleSchemaROI).Methods("GET", "OPTIONS")
	r.HandleFunc("/schema/result", s.handleSchemaResult).Methods("GET", "OPTIONS")
	r.HandleFunc("/schema/version", s.handleSchemaVersion).Methods("GET", "OPTIONS")

	return r
}

func (s *APIServer) Start(port string) error {
	addr := ":" + port
	s.logger.Printf("🚀 inspection API listening on %s", addr)
	return http.ListenAndServe(addr, s.Router())
}

// --- Handlers ---

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": time.Since(s.started).Seconds(),
		"sessions":       s.sessions.Count(),
	})
}

func (s *APIServer) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductName string `json:"product_name"`
		ClientInfo  string `json:"client_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductName == "" {
		writeError(w, http.StatusBadRequest, "product_name is required")
		return
	}

	sess, err := s.sessions.Create(req.ProductName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"session_id": sess.ID})
}

func (s *APIServer) handleSessionList(w http.ResponseWriter, r *http.Request) {
	list := s.sessions.List()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, map[string]interface{}{"sessions": list, "count": len(list)})
}

func (s *APIServer) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, err := s.sessions.Status(id)
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, status)
}

func (s *APIServer) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, err := s.sessions.Close(id)
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, info)
}

func (s *APIServer) handleInspect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		ImageFilename  string                    `json:"image_filename"`
		Image          string                    `json:"image"`
		DeviceBarcodes inspection.DeviceBarcodes `json:"device_barcodes"`
		DeviceBarcode  string                    `json:"device_barcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	result, err := s.coordinator.Inspect(r.Context(), id, inspection.InspectRequest{
		ImageFilename:  req.ImageFilename,
		ImageBase64:    req.Image,
		DeviceBarcodes: req.DeviceBarcodes,
		LegacyBarcode:  req.DeviceBarcode,
	})
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, result)
}

// groupedRequest mirrors the wire shape: groups keyed by "focus,exposure".
type groupedRequest struct {
	ProductName    string                    `json:"product_name"`
	Groups         map[string]groupBody      `json:"groups"`
	DeviceBarcodes inspection.DeviceBarcodes `json:"device_barcodes"`
	DeviceBarcode  string                    `json:"device_barcode"`
}

type groupBody struct {
	Focus         int    `json:"focus"`
	Exposure      int    `json:"exposure"`
	Image         string `json:"image"`
	ImageFilename string `json:"image_filename"`
	ROIs          []int  `json:"rois"`
}

func (s *APIServer) handleGrouped(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req groupedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	keys := make([]string, 0, len(req.Groups))
	for k := range req.Groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]inspection.Group, 0, len(keys))
	for _, k := range keys {
		g := req.Groups[k]
		groups = append(groups, inspection.Group{
			Focus:         g.Focus,
			Exposure:      g.Exposure,
			ImageFilename: g.ImageFilename,
			ImageBase64:   g.Image,
			ROIIDs:        g.ROIs,
		})
	}

	result, err := s.coordinator.ProcessGrouped(r.Context(), id, req.ProductName, groups,
		req.DeviceBarcodes, req.DeviceBarcode)
	if err != nil {
		s.writeMapped(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *APIServer) handleSchemaROI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, schema.ROI())
}

func (s *APIServer) handleSchemaResult(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, schema.Result())
}

func (s *APIServer) handleSchemaVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, schema.Version())
}

// --- Error mapping & JSON helpers ---

// writeMapped translates engine error kinds to the HTTP contract.
func (s *APIServer) writeMapped(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, inspection.ErrInvalidRequest),
		errors.Is(err, roi.ErrInvalidROI),
		errors.Is(err, roi.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inspection.ErrInternal):
		s.logger.Printf("⚠️  internal invariant violation: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Printf("⚠️  inspection failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
