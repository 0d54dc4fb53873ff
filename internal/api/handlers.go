package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miradorstack/workload-classifier/internal/models"
	"github.com/miradorstack/workload-classifier/internal/services"
)

// Client-facing messages.
const (
	msgHealthUnavailable  = "Model not loaded. Please check if model files exist."
	msgPredictUnavailable = "Model not loaded. Please check server logs."
	msgInfoUnavailable    = "Model not loaded"
	msgReloadFailed       = "Failed to reload model"
	msgReloaded           = "Model reloaded successfully"
)

// Predictor classifies metrics records.
type Predictor interface {
	Predict(ctx context.Context, record *models.MetricsRecord) (models.PredictionResult, error)
}

// Introspector reports service and model status.
type Introspector interface {
	Status() models.ServiceStatus
	Health() (models.HealthStatus, error)
	ModelInfo() (models.ModelInfo, error)
}

// Reloader re-reads the model from disk.
type Reloader interface {
	Reload() error
}

// Handlers implements the HTTP endpoints.
type Handlers struct {
	logger       *slog.Logger
	predictor    Predictor
	introspector Introspector
	reloader     Reloader
}

// NewHandlers wires the endpoint implementations.
func NewHandlers(logger *slog.Logger, predictor Predictor, introspector Introspector, reloader Reloader) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		logger:       logger,
		predictor:    predictor,
		introspector: introspector,
		reloader:     reloader,
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type reloadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func abortWithDetail(c *gin.Context, code int, detail string) {
	c.AbortWithStatusJSON(code, errorResponse{Detail: detail})
}

// Root reports the banner and whether a model is loaded.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, h.introspector.Status())
}

// Health returns 200 with the model classes or 503 when nothing is loaded.
func (h *Handlers) Health(c *gin.Context) {
	status, err := h.introspector.Health()
	if err != nil {
		abortWithDetail(c, http.StatusServiceUnavailable, msgHealthUnavailable)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Predict binds a PredictionRequest and classifies its record.
func (h *Handlers) Predict(c *gin.Context) {
	var req models.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("rejected prediction request", slog.String("request_id", requestID(c)), slog.Any("error", err))
		abortWithDetail(c, http.StatusUnprocessableEntity, InvalidRequestDetail(err))
		return
	}

	result, err := h.predictor.Predict(c.Request.Context(), req.Metrics)
	if err != nil {
		if errors.Is(err, services.ErrModelUnavailable) {
			abortWithDetail(c, http.StatusServiceUnavailable, msgPredictUnavailable)
			return
		}
		detail := err.Error()
		var inf *services.InferenceError
		if errors.As(err, &inf) {
			detail = inf.Detail()
		}
		abortWithDetail(c, http.StatusInternalServerError, "Prediction failed: "+detail)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ModelInfo describes the loaded model or returns 503.
func (h *Handlers) ModelInfo(c *gin.Context) {
	info, err := h.introspector.ModelInfo()
	if err != nil {
		abortWithDetail(c, http.StatusServiceUnavailable, msgInfoUnavailable)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ReloadModel reloads the artifact. The previous model keeps serving when
// the reload fails.
func (h *Handlers) ReloadModel(c *gin.Context) {
	if err := h.reloader.Reload(); err != nil {
		abortWithDetail(c, http.StatusInternalServerError, msgReloadFailed)
		return
	}
	c.JSON(http.StatusOK, reloadResponse{Status: models.StatusSuccess, Message: msgReloaded})
}
