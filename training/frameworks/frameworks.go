// Package frameworks describes how the service treats each supported
// training framework.
package frameworks

import (
	"fmt"

	"model-training-service/core/models"
)

// Profile captures the per-framework behavior of the training loop
type Profile struct {
	Framework             models.Framework
	DisplayName           string
	ProducesModelArtifact bool
}

var profiles = map[models.Framework]Profile{
	models.FrameworkSklearn:    {models.FrameworkSklearn, "scikit-learn", true},
	models.FrameworkTensorFlow: {models.FrameworkTensorFlow, "TensorFlow", false},
	models.FrameworkPyTorch:    {models.FrameworkPyTorch, "PyTorch", false},
	models.FrameworkXGBoost:    {models.FrameworkXGBoost, "XGBoost", false},
	models.FrameworkLightGBM:   {models.FrameworkLightGBM, "LightGBM", false},
}

// ProfileFor returns the profile for a framework
func ProfileFor(f models.Framework) (Profile, error) {
	p, ok := profiles[f]
	if !ok {
		return Profile{}, fmt.Errorf("unsupported framework: %s", f)
	}
	return p, nil
}

// ArtifactRef is the tracking-server URI of a run's logged model
func ArtifactRef(runID string) string {
	return fmt.Sprintf("runs:/%s/model", runID)
}
