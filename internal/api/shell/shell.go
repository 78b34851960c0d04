// Package shell contains the Datastar SSE handlers for the globe page: the
// layer-toggle panel, status badges, legend, presets and detail sidebar.
package shell

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/templates"
)

// Element selectors patched on the page.
const (
	selLayerControl = "#layer-control"
	selStatus       = "#status-badges"
	selLegend       = "#legend"
	selPresets      = "#presets"
	selSidebar      = "#sidebar"
)

// Browser events consumed by the globe glue script.
const (
	EventLayersChanged = "layers-changed"
	EventVectorChanged = "vector-changed"
	EventFlyTo         = "fly-to"
)

// Handler serves the shell fragments for one viewer at a time.
type Handler struct {
	humastar.Handler
	viewers *service.ViewerService
}

// New creates a shell handler rendering with renderer.
func New(viewers *service.ViewerService, renderer *templates.Renderer) *Handler {
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		viewers: viewers,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/shell/{id}/panels", h.Panels, huma.OperationTags("shell"))
	huma.Get(api, "/api/v1/shell/{id}/events", h.Events, huma.OperationTags("shell"))
	huma.Post(api, "/api/v1/shell/{id}/layers/{source}/toggle", h.Toggle, huma.OperationTags("shell"))
	huma.Post(api, "/api/v1/shell/{id}/pick", h.Pick, huma.OperationTags("shell"))
	huma.Delete(api, "/api/v1/shell/{id}/selection", h.CloseSelection, huma.OperationTags("shell"))
	huma.Post(api, "/api/v1/shell/{id}/presets/{preset}", h.FlyToPreset, huma.OperationTags("shell"))
}

type ViewerInput struct {
	ID string `path:"id" doc:"Viewer ID"`
}

type ToggleInput struct {
	ViewerInput
	Source string `path:"source" doc:"Source to toggle"`
}

// PickInput carries the pickOnGlobe, pickLongitude, pickLatitude and
// pickEntity signals.
type PickInput struct {
	ViewerInput
	humastar.SignalsInput
}

type PresetInput struct {
	ViewerInput
	Preset string `path:"preset" doc:"Preset ID" example:"djibouti"`
}

func (h *Handler) viewer(id string) (*service.Viewer, error) {
	v, err := h.viewers.Get(id)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return v, nil
}

// Fragment data

type LayerRow struct {
	Viewer string
	Source service.SourceID
	Label  string
	Icon   string
	On     bool
}

type LegendData struct {
	Bathymetry     bool
	ProtectedAreas bool
	Fill           string
}

type PresetData struct {
	Viewer string
	ID     string
	Label  string
}

type RecordRow struct {
	Label string
	Value any
	Unit  string
	// Plain skips thousands separators, for years and codes
	Plain bool
}

type SidebarData struct {
	Viewer     string
	Title      any
	Rows       []RecordRow
	Governance any
}

var sourceLabels = map[service.SourceID][2]string{
	service.Basemap:        {"🛰️", "ESRI satellite imagery"},
	service.Bathymetry:     {"🌊", "Ocean depth"},
	service.ProtectedAreas: {"🛡️", "Protected areas (WDPA)"},
	service.Mangroves:      {"🌿", "Mangroves (WCMC)"},
}

// sidebar rows in display order; NAME is the title and GOV_TYPE the footer
var recordRows = []struct {
	label, key, unit string
	plain            bool
}{
	{"Status", "STATUS", "", false},
	{"Designation", "DESIG", "", false},
	{"IUCN category", "IUCN_CAT", "", false},
	{"Reported area", "REP_AREA", "km²", false},
	{"Status year", "STATUS_YR", "", true},
}

func layerRows(v *service.Viewer) []any {
	vis := v.Visibility()
	rows := make([]any, 0, len(service.Sources))
	for _, id := range service.Sources {
		l := sourceLabels[id]
		rows = append(rows, LayerRow{Viewer: v.ID(), Source: id, Icon: l[0], Label: l[1], On: vis.Get(id)})
	}
	return rows
}

func presetItems(v *service.Viewer) []any {
	items := []any{}
	for _, p := range v.Bootstrap().Presets {
		items = append(items, PresetData{Viewer: v.ID(), ID: p.ID, Label: p.Label})
	}
	return items
}

func sidebarData(v *service.Viewer, sel *service.Selection) SidebarData {
	data := SidebarData{
		Viewer:     v.ID(),
		Title:      sel.Record["NAME"],
		Governance: sel.Record["GOV_TYPE"],
	}
	for _, r := range recordRows {
		data.Rows = append(data.Rows, RecordRow{Label: r.label, Value: sel.Record[r.key], Unit: r.unit, Plain: r.plain})
	}
	return data
}

func (h *Handler) renderLayerControl(v *service.Viewer) string {
	return h.RenderList("layer-row", layerRows(v), "No layers", "Imagery sources are not configured")
}

func (h *Handler) renderLegend(v *service.Viewer) string {
	vis := v.Visibility()
	return h.Render("legend", LegendData{
		Bathymetry:     vis.Bathymetry,
		ProtectedAreas: vis.ProtectedAreas,
		Fill:           v.Bootstrap().VectorStyle.Fill,
	})
}

func (h *Handler) renderSidebar(v *service.Viewer) string {
	sel := v.Selection()
	if sel == nil {
		return h.Render("sidebar-closed", nil)
	}
	return h.Render("sidebar", sidebarData(v, sel))
}

// patchPanels renders every shell fragment for v.
func (h *Handler) patchPanels(sse humastar.SSE, v *service.Viewer) {
	sse.Patch(h.renderLayerControl(v), selLayerControl)
	sse.Patch(h.Render("status-badges", v.Status()), selStatus)
	sse.Replace(h.renderLegend(v), selLegend)
	sse.Patch(h.RenderList("preset", presetItems(v), "No presets", ""), selPresets)
	sse.Replace(h.renderSidebar(v), selSidebar)
}

type layersDetail struct {
	Layers []service.LayerState `json:"layers"`
}

type vectorDetail struct {
	Version uint64 `json:"version"`
	Show    bool   `json:"show"`
}

func vectorState(v *service.Viewer) vectorDetail {
	snap := v.Vector()
	return vectorDetail{Version: snap.Version, Show: snap.Show}
}
