package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promptgate/gateway/internal/infrastructure/promptengine"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

// ToolHandler exposes Dispatcher.Execute/Resume as the `/tools/execute`
// and `/tools/resume` endpoints (spec §4.7 `{command, gates?, options?}`
// / `{chain_id, user_response?, gate_verdict?, gate_action?,
// force_restart?}` request shapes).
type ToolHandler struct {
	dispatcher *promptengine.Dispatcher
	logger     *zap.Logger
}

// NewToolHandler creates a ToolHandler.
func NewToolHandler(dispatcher *promptengine.Dispatcher, logger *zap.Logger) *ToolHandler {
	return &ToolHandler{dispatcher: dispatcher, logger: logger}
}

type executeBody struct {
	Command string                 `json:"command" binding:"required"`
	Gates   []quickGateBody        `json:"gates"`
	Options map[string]interface{} `json:"options"`
}

type quickGateBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type resumeBody struct {
	ChainID      string `json:"chain_id" binding:"required"`
	UserResponse string `json:"user_response"`
	GateVerdict  string `json:"gate_verdict"`
	GateAction   string `json:"gate_action"`
	ForceRestart bool   `json:"force_restart"`
}

// Execute handles POST /tools/execute.
func (h *ToolHandler) Execute(c *gin.Context) {
	var body executeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gates := make([]promptengine.QuickGateInput, len(body.Gates))
	for i, g := range body.Gates {
		gates[i] = promptengine.QuickGateInput{Name: g.Name, Description: g.Description}
	}

	env, err := h.dispatcher.Execute(c.Request.Context(), promptengine.ExecuteRequest{
		Command: body.Command,
		Gates:   gates,
		Options: body.Options,
	})
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, envelopeResponse(env))
}

// Resume handles POST /tools/resume.
func (h *ToolHandler) Resume(c *gin.Context) {
	var body resumeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	env, err := h.dispatcher.Resume(c.Request.Context(), promptengine.ResumeRequest{
		ChainID:      body.ChainID,
		UserResponse: body.UserResponse,
		GateVerdict:  body.GateVerdict,
		GateAction:   body.GateAction,
		ForceRestart: body.ForceRestart,
	})
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, envelopeResponse(env))
}

func envelopeResponse(env *promptengine.PauseEnvelope) gin.H {
	return gin.H{
		"chain_id":        env.ChainID,
		"rendered_prompt": env.RenderedPrompt,
		"awaiting_gates":  env.AwaitingGates,
		"step_number":     env.StepNumber,
		"total_steps":     env.TotalSteps,
		"completed":       env.Completed,
		"status":          env.Status,
	}
}

// writeAppError maps an error onto an HTTP status via its Envelope's Kind
// and logs at a level matching its Severity (spec §5/§7 "the transport
// layer maps Kind to a status code and Severity to a log level, never
// inventing its own mapping").
func writeAppError(c *gin.Context, logger *zap.Logger, err error) {
	env := apperrors.ToEnvelope(err)
	logAppError(logger, env)
	c.JSON(statusForKind(env.Code), env)
}

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindUnknownPrompt:
		return http.StatusNotFound
	case apperrors.KindSession:
		return http.StatusConflict
	case apperrors.KindScript, apperrors.KindGate:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func logAppError(logger *zap.Logger, env apperrors.Envelope) {
	fields := []zap.Field{zap.String("kind", string(env.Code)), zap.String("message", env.Message)}
	switch env.Severity {
	case apperrors.SeverityCritical, apperrors.SeverityHigh:
		logger.Error("request failed", fields...)
	case apperrors.SeverityMedium:
		logger.Warn("request failed", fields...)
	default:
		logger.Info("request failed", fields...)
	}
}
