package controllers

import (
	"context"
	"net/http"

	"plantify/apperr"
	"plantify/media"
	"plantify/utils"
)

// Predictor runs the disease model on a local image and consumes the file
type Predictor interface {
	Predict(ctx context.Context, localPath string) (map[string]interface{}, error)
}

// MLController relays plant images to the disease detection model
type MLController struct {
	predictor Predictor
	tempDir   string
}

func NewMLController(predictor Predictor, tempDir string) *MLController {
	return &MLController{predictor: predictor, tempDir: tempDir}
}

// DetectDisease forwards the multipart field plantImage and returns the
// model's verdict merged into the envelope
func (mc *MLController) DetectDisease(w http.ResponseWriter, r *http.Request) {
	path, err := media.SaveImage(w, r, "plantImage", mc.tempDir)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if path == "" {
		utils.WriteError(w, r, apperr.Validation("No image file provided in the request body."))
		return
	}

	result, err := mc.predictor.Predict(r.Context(), path)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	fields := make(utils.Envelope, len(result))
	for k, v := range result {
		if k == "success" || k == "message" {
			continue
		}
		fields[k] = v
	}
	utils.WriteSuccess(w, http.StatusOK, "Prediction received successfully.", fields)
}
