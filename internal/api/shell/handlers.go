package shell

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/service"
)

// Panels renders every shell fragment once.
func (h *Handler) Panels(ctx context.Context, input *ViewerInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.patchPanels(sse, v)
	}), nil
}

// Toggle flips one layer and re-renders the panel and legend. The globe
// picks up the new stack from the events stream.
func (h *Handler) Toggle(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	id, err := service.ParseSource(input.Source)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}

	return h.Stream(func(sse humastar.SSE) {
		if _, err := v.Toggle(ctx, id); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch(h.renderLayerControl(v), selLayerControl)
		sse.Replace(h.renderLegend(v), selLegend)
	}), nil
}

// Pick hit-tests the clicked point sent as signals and renders the sidebar.
// Without pickOnGlobe only the entity can hit.
func (h *Handler) Pick(ctx context.Context, input *PickInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	// pickOnGlobe is false when the click missed the globe
	var p *orb.Point
	lon, okLon := signals.Number("pickLongitude")
	lat, okLat := signals.Number("pickLatitude")
	if signals.Bool("pickOnGlobe") && okLon && okLat {
		p = &orb.Point{lon, lat}
	}
	entity := signals.String("pickEntity")

	return h.Stream(func(sse humastar.SSE) {
		if _, err := v.Pick(p, entity); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Replace(h.renderSidebar(v), selSidebar)
	}), nil
}

// CloseSelection clears the selection and hides the sidebar.
func (h *Handler) CloseSelection(ctx context.Context, input *ViewerInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		v.ClearSelection()
		sse.Replace(h.Render("sidebar-closed", nil), selSidebar)
	}), nil
}

// FlyToPreset sends the preset camera transition to the globe.
func (h *Handler) FlyToPreset(ctx context.Context, input *PresetInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}
	preset, ok := v.Bootstrap().Preset(input.Preset)
	if !ok {
		return nil, huma.Error404NotFound("preset not found")
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Dispatch(EventFlyTo, preset.FlyTo)
	}), nil
}
