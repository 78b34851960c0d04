package shell

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/humastar"
	"github.com/joeblew999/plat-marine/internal/logging"
	"github.com/joeblew999/plat-marine/internal/service"
)

// Events streams viewer changes to the page. It starts with a full render
// and ends when the client goes away or the viewer is destroyed.
func (h *Handler) Events(ctx context.Context, input *ViewerInput) (*huma.StreamResponse, error) {
	v, err := h.viewer(input.ID)
	if err != nil {
		return nil, err
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			bus := h.viewers.Bus()
			ch := bus.Subscribe(v.ID())
			defer bus.Unsubscribe(ch)

			log := logging.With("shell")
			log.Debug().Str("viewer", v.ID()).Msg("event stream opened")
			defer log.Debug().Str("viewer", v.ID()).Msg("event stream closed")

			h.patchPanels(sse, v)
			sse.Dispatch(EventLayersChanged, layersDetail{Layers: v.Layers()})
			sse.Dispatch(EventVectorChanged, vectorState(v))

			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					return
				case ev, ok := <-ch:
					if !ok || ev.Kind == service.EventClosed {
						return
					}
					h.apply(sse, v, ev.Kind)
				}
			}
		},
	}, nil
}

func (h *Handler) apply(sse humastar.SSE, v *service.Viewer, kind service.EventKind) {
	switch kind {
	case service.EventLayers:
		sse.Patch(h.renderLayerControl(v), selLayerControl)
		sse.Replace(h.renderLegend(v), selLegend)
		sse.Dispatch(EventLayersChanged, layersDetail{Layers: v.Layers()})
	case service.EventStatus:
		sse.Patch(h.Render("status-badges", v.Status()), selStatus)
	case service.EventVector:
		sse.Dispatch(EventVectorChanged, vectorState(v))
	case service.EventSelection:
		sse.Replace(h.renderSidebar(v), selSidebar)
		if sel := v.Selection(); sel != nil {
			sse.Dispatch(EventFlyTo, sel.FlyTo)
		}
	}
}
