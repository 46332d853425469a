package detect

import (
	"fmt"

	"github.com/MrCodeEU/faceattend/pkg/config"
)

// New builds the detector selected by cfg.Backend.
func New(cfg config.DetectionConfig) (Detector, error) {
	opts := Options{MinSize: cfg.MinSize, Primary: cfg.Primary}

	switch cfg.Backend {
	case "cascade", "":
		return NewCascadeDetector(cfg.CascadePath, CascadeOptions{
			Options:      opts,
			ScaleFactor:  cfg.ScaleFactor,
			MinNeighbors: cfg.MinNeighbors,
		})
	case "dlib":
		return NewDlibDetector(cfg.ModelPath, opts)
	default:
		return nil, fmt.Errorf("unknown detection backend: %s", cfg.Backend)
	}
}
