package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/config"
)

type InfoHandler struct {
	cfg     config.Config
	viewers func() int
}

func NewInfoHandler(cfg config.Config, viewers func() int) *InfoHandler {
	return &InfoHandler{cfg: cfg, viewers: viewers}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name            string      `json:"name" doc:"Service name"`
	Version         string      `json:"version" doc:"Service version"`
	Mode            config.Mode `json:"mode" enum:"development,production" doc:"GIS network path"`
	Upstream        string      `json:"upstream" doc:"GIS upstream host"`
	VectorMaxHeight float64     `json:"vector_max_height" doc:"Camera height (m) above which the vector layer is hidden"`
	Viewers         int         `json:"viewers" doc:"Live viewer sessions"`
	Features        []string    `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	n := 0
	if h.viewers != nil {
		n = h.viewers()
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:            "plat-marine",
		Version:         "0.1.0",
		Mode:            h.cfg.Mode,
		Upstream:        h.cfg.Catalog.UpstreamHost,
		VectorMaxHeight: h.cfg.Catalog.VectorMaxHeight,
		Viewers:         n,
		Features:        []string{"imagery", "wdpa-vector", "pick-inspect", "datastar-shell"},
	}}, nil
}
