package service

import "math"

// BootstrapOptions are the globe-engine construction options for a viewer.
type BootstrapOptions struct {
	Chrome                ChromeOptions `json:"chrome" doc:"Built-in widgets, all disabled"`
	SkyAtmosphere         bool          `json:"skyAtmosphere"`
	ShouldAnimate         bool          `json:"shouldAnimate"`
	BaseLayer             bool          `json:"baseLayer" doc:"Engine default base layer"`
	PreserveDrawingBuffer bool          `json:"preserveDrawingBuffer"`
	Globe                 GlobeOptions  `json:"globe"`
	Terrain               string        `json:"terrain" enum:"ellipsoid" doc:"Terrain provider"`
	Camera                CameraPose    `json:"camera" doc:"Initial camera pose"`
	Presets               []Preset      `json:"presets" doc:"Named camera destinations"`
	VectorStyle           VectorStyle   `json:"vectorStyle" doc:"Style of the protected-areas vector dataset"`
}

// ChromeOptions toggles the engine's built-in widgets.
type ChromeOptions struct {
	BaseLayerPicker      bool `json:"baseLayerPicker"`
	Geocoder             bool `json:"geocoder"`
	HomeButton           bool `json:"homeButton"`
	InfoBox              bool `json:"infoBox"`
	SceneModePicker      bool `json:"sceneModePicker"`
	SelectionIndicator   bool `json:"selectionIndicator"`
	Timeline             bool `json:"timeline"`
	Animation            bool `json:"animation"`
	NavigationHelpButton bool `json:"navigationHelpButton"`
	FullscreenButton     bool `json:"fullscreenButton"`
}

// GlobeOptions are the base rendering options of the globe surface.
type GlobeOptions struct {
	DepthTestAgainstTerrain bool   `json:"depthTestAgainstTerrain"`
	EnableLighting          bool   `json:"enableLighting"`
	ShowGroundAtmosphere    bool   `json:"showGroundAtmosphere"`
	BaseColor               string `json:"baseColor" doc:"CSS colour of the bare globe"`
}

// CameraPose is a camera position and orientation (degrees, meters, radians).
type CameraPose struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Height    float64 `json:"height"`
	Heading   float64 `json:"heading"`
	Pitch     float64 `json:"pitch"`
	Roll      float64 `json:"roll"`
}

// Preset is a named fly-to destination offered by the shell.
type Preset struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	FlyTo FlyTo  `json:"flyTo"`
}

// VectorStyle mirrors the engine's GeoJSON load options.
type VectorStyle struct {
	Stroke        string  `json:"stroke"`
	Fill          string  `json:"fill"`
	FillAlpha     float64 `json:"fillAlpha"`
	StrokeWidth   float64 `json:"strokeWidth"`
	ClampToGround bool    `json:"clampToGround"`
}

// DefaultBootstrap returns the chrome-free global view.
func DefaultBootstrap() BootstrapOptions {
	return BootstrapOptions{
		PreserveDrawingBuffer: true,
		Globe: GlobeOptions{
			BaseColor: "#000814",
		},
		Terrain: "ellipsoid",
		Camera: CameraPose{
			Longitude: -150,
			Latitude:  10,
			Height:    18_000_000,
			Pitch:     -math.Pi / 2,
		},
		Presets: []Preset{
			{
				ID:    "djibouti",
				Label: "Focus on Djibouti",
				FlyTo: FlyTo{Longitude: 43.15, Latitude: 11.5, Height: 300_000, Duration: 3, Pitch: -math.Pi / 2},
			},
		},
		VectorStyle: VectorStyle{
			Stroke:        "#f59e0b",
			Fill:          "#f59e0b",
			FillAlpha:     0.3,
			StrokeWidth:   2,
			ClampToGround: true,
		},
	}
}

// Preset returns the preset with id.
func (b BootstrapOptions) Preset(id string) (Preset, bool) {
	for _, p := range b.Presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}
