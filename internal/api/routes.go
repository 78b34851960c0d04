// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Viewers *service.ViewerService
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Viewer ID" example:"0b7e2f4a-3c1d-4e8b-9a57-6f0d2c1b8e93"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// VectorSummary describes the vector dataset without its features.
type VectorSummary struct {
	Name     string `json:"name" doc:"Dataset name"`
	Show     bool   `json:"show" doc:"Dataset visible"`
	Version  uint64 `json:"version" doc:"Content version, bumped on every reload"`
	Features int    `json:"features" doc:"Loaded feature count"`
}

// ViewerBody is the bootstrap options and state snapshot of a viewer.
type ViewerBody struct {
	ID         string                   `json:"id" doc:"Viewer ID"`
	CreatedAt  time.Time                `json:"createdAt" doc:"Creation time"`
	Bootstrap  service.BootstrapOptions `json:"bootstrap" doc:"Globe engine options"`
	Visibility service.LayerVisibility  `json:"visibility" doc:"Layer visibility flags"`
	Status     service.ServiceStatus    `json:"status" doc:"Service status badges"`
	Layers     []service.LayerState     `json:"layers" doc:"Imagery stack, bottom first"`
	Vector     VectorSummary            `json:"vector" doc:"Vector dataset summary"`
	Selection  *service.Selection       `json:"selection,omitempty" doc:"Picked feature, if any"`
}

var viewerActions = []humastar.ActionDef{
	{Rel: "camera", Pattern: "/api/v1/viewers/%s/camera", Method: http.MethodPost, Title: "Report camera move end"},
	{Rel: "pick", Pattern: "/api/v1/viewers/%s/pick", Method: http.MethodPost, Title: "Pick at a point"},
	{Rel: "vector", Pattern: "/api/v1/viewers/%s/vector", Method: http.MethodGet, Title: "Protected-area features"},
	{Rel: "delete", Pattern: "/api/v1/viewers/%s", Method: http.MethodDelete, Title: "Tear the viewer down"},
}

// Actions implements humastar.Actor. Closing the detail panel is only
// offered while a feature is selected.
func (b ViewerBody) Actions() []humastar.Action {
	actions := humastar.ActionsFor(b.ID, viewerActions)
	for _, id := range service.Sources {
		actions = append(actions, humastar.Action{
			Rel:    "toggle-" + string(id),
			Href:   "/api/v1/viewers/" + b.ID + "/layers/" + string(id) + "/toggle",
			Method: http.MethodPost,
			Title:  "Toggle " + string(id),
		})
	}
	if b.Selection != nil {
		actions = append(actions, humastar.Action{
			Rel:    "clear-selection",
			Href:   "/api/v1/viewers/" + b.ID + "/selection",
			Method: http.MethodDelete,
			Title:  "Close detail panel",
		})
	}
	return actions
}

// ViewerSummary is a viewer listing entry.
type ViewerSummary struct {
	ID        string    `json:"id" doc:"Viewer ID"`
	CreatedAt time.Time `json:"createdAt" doc:"Creation time"`
}

type ViewerListOutput struct {
	Body []ViewerSummary
}

type ViewerOutput struct {
	Body ViewerBody
}

// LayersBody is the imagery stack of a viewer.
type LayersBody struct {
	Layers     []service.LayerState    `json:"layers" doc:"Imagery stack, bottom first"`
	Visibility service.LayerVisibility `json:"visibility" doc:"Layer visibility flags"`
	Status     service.ServiceStatus   `json:"status" doc:"Service status badges"`
}

type LayersOutput struct {
	Body LayersBody
}

type ToggleInput struct {
	IDInput
	Source string `path:"source" doc:"Source to toggle: basemap, bathymetry, protected-areas or mangroves" example:"mangroves"`
}

// CameraBody is the pose reported on camera move end.
type CameraBody struct {
	View   *service.Rectangle `json:"view,omitempty" required:"false" doc:"Visible rectangle in degrees; omitted when the engine could not compute one"`
	Height float64            `json:"height" doc:"Camera height above the ellipsoid (m)"`
}

type CameraInput struct {
	IDInput
	Body CameraBody
}

type RefreshOutput struct {
	Body service.RefreshResult
}

// VectorBody is the vector dataset as GeoJSON plus its display style.
type VectorBody struct {
	Name     string                     `json:"name" doc:"Dataset name"`
	Show     bool                       `json:"show" doc:"Dataset visible"`
	Version  uint64                     `json:"version" doc:"Content version"`
	Style    service.VectorStyle        `json:"style" doc:"Display style"`
	Features *geojson.FeatureCollection `json:"features" doc:"GeoJSON FeatureCollection"`
}

type VectorOutput struct {
	Body VectorBody
}

// PickBody is a pick request. The point is omitted when the click missed
// the globe.
type PickBody struct {
	Longitude *float64 `json:"longitude,omitempty" required:"false" minimum:"-180" maximum:"180" doc:"Clicked longitude (deg)"`
	Latitude  *float64 `json:"latitude,omitempty" required:"false" minimum:"-90" maximum:"90" doc:"Clicked latitude (deg)"`
	EntityID  string   `json:"entityId,omitempty" required:"false" doc:"Entity picked by the engine, if any"`
}

// Point returns the clicked point, or nil unless both coordinates are set.
func (b PickBody) Point() *orb.Point {
	if b.Longitude == nil || b.Latitude == nil {
		return nil
	}
	return &orb.Point{*b.Longitude, *b.Latitude}
}

type PickInput struct {
	IDInput
	Body PickBody
}

// PickResultBody reports the pick outcome.
type PickResultBody struct {
	Hit       bool               `json:"hit" doc:"A feature was hit"`
	Selection *service.Selection `json:"selection,omitempty" doc:"Selected feature; absent on a miss"`
}

type PickOutput struct {
	Body PickResultBody
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterViewers registers viewer lifecycle routes.
func (h *APIHandler) RegisterViewers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-viewer",
		Method:        http.MethodPost,
		Path:          "/api/v1/viewers",
		Summary:       "Create viewer",
		Tags:          []string{"viewers"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateViewer)
	huma.Get(api, "/api/v1/viewers", h.ListViewers, huma.OperationTags("viewers"))
	huma.Get(api, "/api/v1/viewers/{id}", h.GetViewer, huma.OperationTags("viewers"))
	huma.Delete(api, "/api/v1/viewers/{id}", h.DeleteViewer, huma.OperationTags("viewers"))
}

// RegisterLayers registers layer stack routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/viewers/{id}/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/viewers/{id}/layers/{source}/toggle", h.ToggleLayer, huma.OperationTags("layers"))
}

// RegisterVector registers viewport refresh routes.
func (h *APIHandler) RegisterVector(api huma.API) {
	huma.Post(api, "/api/v1/viewers/{id}/camera", h.MoveCamera, huma.OperationTags("vector"))
	huma.Get(api, "/api/v1/viewers/{id}/vector", h.GetVector, huma.OperationTags("vector"))
}

// RegisterSelection registers pick/inspect routes.
func (h *APIHandler) RegisterSelection(api huma.API) {
	huma.Post(api, "/api/v1/viewers/{id}/pick", h.Pick, huma.OperationTags("selection"))
	huma.Delete(api, "/api/v1/viewers/{id}/selection", h.ClearSelection, huma.OperationTags("selection"))
}

// Problem maps domain errors to Huma problem responses.
func Problem(err error) error {
	switch {
	case errors.Is(err, service.ErrViewerNotFound), errors.Is(err, service.ErrUnknownSource):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrViewerClosed):
		return huma.Error410Gone(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) viewer(id string) (*service.Viewer, error) {
	v, err := h.svc.Viewers.Get(id)
	if err != nil {
		return nil, Problem(err)
	}
	return v, nil
}

func (h *APIHandler) CreateViewer(ctx context.Context, input *struct{}) (*ViewerOutput, error) {
	v, err := h.svc.Viewers.Create(ctx)
	if err != nil {
		return nil, Problem(err)
	}
	return &ViewerOutput{Body: snapshot(v)}, nil
}

func (h *APIHandler) ListViewers(ctx context.Context, input *struct{}) (*ViewerListOutput, error) {
	out := &ViewerListOutput{Body: []ViewerSummary{}}
	for _, v := range h.svc.Viewers.List() {
		out.Body = append(out.Body, ViewerSummary{ID: v.ID(), CreatedAt: v.CreatedAt()})
	}
	return out, nil
}

func (h *APIHandler) GetViewer(ctx context.Context, input *IDInput) (*ViewerOutput, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	return &ViewerOutput{Body: snapshot(v)}, nil
}

func (h *APIHandler) DeleteViewer(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Viewers.Delete(input.ID); err != nil {
		return nil, Problem(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Viewer destroyed"}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *IDInput) (*LayersOutput, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	return &LayersOutput{Body: layers(v)}, nil
}

func (h *APIHandler) ToggleLayer(ctx context.Context, input *ToggleInput) (*LayersOutput, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	id, err := service.ParseSource(input.Source)
	if err != nil {
		return nil, Problem(err)
	}
	if _, err := v.Toggle(ctx, id); err != nil {
		return nil, Problem(err)
	}
	return &LayersOutput{Body: layers(v)}, nil
}

func (h *APIHandler) MoveCamera(ctx context.Context, input *CameraInput) (*RefreshOutput, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	res, err := v.CameraMoved(ctx, service.Camera{View: input.Body.View, Height: input.Body.Height})
	if err != nil {
		return nil, Problem(err)
	}
	return &RefreshOutput{Body: res}, nil
}

func (h *APIHandler) GetVector(ctx context.Context, input *IDInput) (*VectorOutput, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	snap := v.Vector()
	return &VectorOutput{Body: VectorBody{
		Name:     snap.Name,
		Show:     snap.Show,
		Version:  snap.Version,
		Style:    v.Bootstrap().VectorStyle,
		Features: snap.Features,
	}}, nil
}

func (h *APIHandler) Pick(ctx context.Context, input *PickInput) (*PickOutput, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	sel, err := v.Pick(input.Body.Point(), input.Body.EntityID)
	if err != nil {
		return nil, Problem(err)
	}
	return &PickOutput{Body: PickResultBody{Hit: sel != nil, Selection: sel}}, nil
}

func (h *APIHandler) ClearSelection(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	v.ClearSelection()
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Selection cleared"}}, nil
}

func snapshot(v *service.Viewer) ViewerBody {
	vec := v.Vector()
	return ViewerBody{
		ID:         v.ID(),
		CreatedAt:  v.CreatedAt(),
		Bootstrap:  v.Bootstrap(),
		Visibility: v.Visibility(),
		Status:     v.Status(),
		Layers:     v.Layers(),
		Vector: VectorSummary{
			Name:     vec.Name,
			Show:     vec.Show,
			Version:  vec.Version,
			Features: len(vec.Features.Features),
		},
		Selection: v.Selection(),
	}
}

func layers(v *service.Viewer) LayersBody {
	return LayersBody{Layers: v.Layers(), Visibility: v.Visibility(), Status: v.Status()}
}
