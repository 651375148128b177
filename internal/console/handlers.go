package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/circle"
	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geocoding"
	"github.com/fleetconsole/console/internal/geofence"
	"github.com/fleetconsole/console/internal/middleware"
	"github.com/fleetconsole/console/internal/observability"
	"github.com/fleetconsole/console/internal/store"
	"github.com/fleetconsole/console/internal/utils"
	"github.com/fleetconsole/console/internal/visibility"
)

// Catalog is the geofence storage the HTTP surface reads and writes.
type Catalog interface {
	Persistence
	Get(ctx context.Context, id string) (geofence.Geofence, visibility.Resource, error)
	ListVisible(ctx context.Context, actor access.Actor) ([]geofence.Geofence, error)
	FindContaining(ctx context.Context, actor access.Actor, p geo.Point) ([]geofence.Geofence, error)
}

type Handler struct {
	catalog   Catalog
	resolver  *visibility.Resolver
	submitter *Submitter
	geocoder  circle.Geocoder
}

// NewHandler wires the HTTP surface. A nil geocoder turns address lookup
// into 503 responses.
func NewHandler(catalog Catalog, dir visibility.Directory, geocoder circle.Geocoder, metrics *observability.Collector) *Handler {
	resolver := visibility.NewResolver(dir)
	return &Handler{
		catalog:   catalog,
		resolver:  resolver,
		submitter: NewSubmitter(catalog, resolver, metrics),
		geocoder:  geocoder,
	}
}

// SetupRoutes mounts the geofence endpoints. Reads need the list screen's
// roles, writes need the edit screen's.
func (h *Handler) SetupRoutes(routes *access.Routes, metrics *observability.Collector) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRoles(routes, access.ScreenGeofences, metrics))
		r.Get("/", h.List)
		r.Get("/options", h.Options)
		r.Get("/eligible-users", h.EligibleUsers)
		r.Get("/containing", h.Containing)
		r.Get("/{id}", h.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRoles(routes, access.ScreenGeofenceEdit, metrics))
		r.Get("/geocode", h.Geocode)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
	})

	return r
}

// geofenceRequest is the form as posted. Numeric inputs are kept as their
// raw text so validation sees exactly what was typed. Polygon rings use
// GeoJSON order (lng, lat) and are not closed.
type geofenceRequest struct {
	Name         string                `json:"name"`
	Color        string                `json:"color"`
	AlertType    geofence.AlertType    `json:"alertType"`
	SpeedLimit   json.RawMessage       `json:"speedLimit"`
	CreationMode geofence.CreationMode `json:"creationMode"`
	Polygon      [][2]float64          `json:"polygon"`
	Circle       *circleRequest        `json:"circle"`
	Assignment   geofence.Assignment   `json:"assignment"`
	Scope        visibility.Scope      `json:"scope"`
}

type circleRequest struct {
	Lat    json.RawMessage `json:"lat"`
	Lng    json.RawMessage `json:"lng"`
	Radius json.RawMessage `json:"radius"`
}

type geofenceResponse struct {
	geofence.Geofence
	Scope *visibility.Scope `json:"scope,omitempty"`
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
	Order  []string          `json:"order"`
}

func (req geofenceRequest) submission(id, explicitClientID string) Submission {
	src := geofence.GeometrySource{Mode: req.CreationMode}
	if len(req.Polygon) > 0 {
		ring := make([]geo.Point, len(req.Polygon))
		for i, p := range req.Polygon {
			ring[i] = geo.Point{Lat: p[1], Lng: p[0]}
		}
		src.Ring = ring
	}
	if req.Circle != nil {
		src.Circle = geofence.CircleFields{
			Lat:    rawText(req.Circle.Lat),
			Lng:    rawText(req.Circle.Lng),
			Radius: rawText(req.Circle.Radius),
		}
	}
	return Submission{
		Source: src,
		Fields: geofence.FormFields{
			ID:             id,
			Name:           req.Name,
			Color:          req.Color,
			AlertType:      req.AlertType,
			SpeedLimit:     rawText(req.SpeedLimit),
			AssignmentKind: req.Assignment.Kind,
			ClientID:       req.Assignment.ClientID,
		},
		Scope:            req.Scope,
		ExplicitClientID: explicitClientID,
	}
}

// rawText turns a JSON string or number into the text a form field would
// hold. null and absent values become "".
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.GetActorFromContext(r.Context())
	list, err := h.catalog.ListVisible(r.Context(), actor)
	if err != nil {
		log.Error("list geofences", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.GetActorFromContext(r.Context())
	g, res, ok := h.loadVisible(w, r, actor)
	if !ok {
		return
	}
	writeJSON(w, geofenceResponse{Geofence: g, Scope: &res.Scope})
}

// Options returns the alert types and assignment controls for the form.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.GetActorFromContext(r.Context())
	clientID, ok := requestClientID(w, r, actor)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"alertTypes": geofence.AlertTypes(),
		"assignment": geofence.AssignmentOptions(actor, clientID),
	})
}

// EligibleUsers lists the users a record for ?clientId= may be assigned to.
// Directory failures degrade to an empty list.
func (h *Handler) EligibleUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.GetActorFromContext(r.Context())
	clientID := r.URL.Query().Get("clientId")
	if actor.ClientBound() {
		clientID = actor.ClientID
	}
	users, err := h.resolver.EligibleUsers(r.Context(), actor, clientID)
	if err != nil {
		log.Warn("eligible users for client %q: %v", clientID, err)
		w.Header().Set("X-Data-Status", "degraded")
	}
	writeJSON(w, users)
}

// Containing lists the visible geofences around ?lat=&lng=.
func (h *Handler) Containing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil || !geo.ValidLat(lat) || !geo.ValidLng(lng) {
		http.Error(w, "Missing or invalid lat/lng parameters", http.StatusBadRequest)
		return
	}

	actor, _ := utils.GetActorFromContext(r.Context())
	hits, err := h.catalog.FindContaining(r.Context(), actor, geo.Point{Lat: lat, Lng: lng})
	if err != nil {
		log.Error("containing lookup", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if hits == nil {
		hits = []geofence.Geofence{}
	}
	writeJSON(w, hits)
}

// Geocode resolves ?address= for the circle editor so the provider key stays
// on the server.
func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		http.Error(w, "Missing address parameter", http.StatusBadRequest)
		return
	}
	if h.geocoder == nil {
		http.Error(w, "Address lookup unavailable", http.StatusServiceUnavailable)
		return
	}

	p, err := h.geocoder.Search(r.Context(), address)
	var terr *geocoding.TransportError
	switch {
	case err == nil:
		writeJSON(w, p)
	case errors.Is(err, geocoding.ErrNotFound):
		http.Error(w, "No match for address", http.StatusNotFound)
	case errors.As(err, &terr):
		if terr.Retryable() {
			w.Header().Set("Retry-After", "1")
		}
		http.Error(w, "Geocoding provider unavailable", http.StatusBadGateway)
	default:
		log.Error("geocode", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req geofenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	actor, _ := utils.GetActorFromContext(r.Context())
	clientID, ok := requestClientID(w, r, actor)
	if !ok {
		return
	}
	h.save(w, r, actor, req.submission("", clientID), http.StatusCreated)
}

// Update replaces a geofence the actor can see. Global geofences are left to
// superusers.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.GetActorFromContext(r.Context())
	clientID, ok := requestClientID(w, r, actor)
	if !ok {
		return
	}
	_, res, ok := h.loadVisible(w, r, actor)
	if !ok {
		return
	}
	if !visibility.CanEdit(actor, res) {
		http.Error(w, "Forbidden: only superusers may edit global geofences", http.StatusForbidden)
		return
	}

	var req geofenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.save(w, r, actor, req.submission(chi.URLParam(r, "id"), clientID), http.StatusOK)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, actor access.Actor, sub Submission, status int) {
	_, g, err := h.submitter.Submit(r.Context(), actor, sub)

	var verr *geofence.ValidationError
	switch {
	case err == nil:
		writeJSONStatus(w, status, geofenceResponse{Geofence: g, Scope: &sub.Scope})
	case errors.As(err, &verr):
		writeJSONStatus(w, http.StatusUnprocessableEntity, validationResponse{
			Error:  "validation failed",
			Fields: verr.FieldErrors,
			Order:  verr.Fields(),
		})
	case errors.Is(err, geofence.ErrAssignmentUnavailable):
		http.Error(w, "Forbidden: no client available for assignment", http.StatusForbidden)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Geofence not found", http.StatusNotFound)
	case errors.Is(err, ErrDirectoryUnavailable):
		w.Header().Set("Retry-After", "5")
		http.Error(w, "User directory unavailable, try again", http.StatusServiceUnavailable)
	default:
		log.Error("save geofence", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// requestClientID reads ?clientId=. Only superusers may name another client;
// a client-bound actor may repeat its own and gets 403 for anything else.
func requestClientID(w http.ResponseWriter, r *http.Request, actor access.Actor) (string, bool) {
	clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
	if clientID != "" && actor.ClientBound() && clientID != actor.ClientID {
		http.Error(w, "Forbidden: client outside your scope", http.StatusForbidden)
		return "", false
	}
	return clientID, true
}

// loadVisible writes 404 both for missing records and for records the actor
// may not see.
func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request, actor access.Actor) (geofence.Geofence, visibility.Resource, bool) {
	g, res, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && !visibility.CanView(actor, res)) {
		http.Error(w, "Geofence not found", http.StatusNotFound)
		return geofence.Geofence{}, visibility.Resource{}, false
	}
	if err != nil {
		log.Error("get geofence", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return geofence.Geofence{}, visibility.Resource{}, false
	}
	return g, res, true
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
