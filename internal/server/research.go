package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/prospect-labs/prospector/internal/research"
)

// Runner executes one research run; satisfied by *research.Pipeline and
// stubbed in handler tests.
type Runner interface {
	Run(ctx context.Context, question string) (*research.State, error)
}

// ResearchHandler serves the research API.
type ResearchHandler struct {
	Runner Runner
	Logger *log.Logger
}

// Register mounts the handler's routes on the group.
func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("/research", h.research)
}

type researchRequest struct {
	Question string `json:"question"`
}

type researchResponse struct {
	RunID    string            `json:"run_id"`
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Analyses map[string]string `json:"analyses"`
}

func analysisOrReason(slot *research.Slot[string]) string {
	if value, ok := slot.Value(); ok {
		return value
	}
	return "(analysis unavailable: " + slot.Reason() + ")"
}

func (h *ResearchHandler) research(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	st, err := h.Runner.Run(c.Request().Context(), question)
	if err != nil {
		h.Logger.Printf("research run failed: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, "research run failed")
	}

	answer, _ := st.FinalAnswer.Value()
	return c.JSON(http.StatusOK, researchResponse{
		RunID:    st.RunID,
		Question: st.Question,
		Answer:   answer,
		Analyses: map[string]string{
			"google": analysisOrReason(&st.GoogleAnalysis),
			"bing":   analysisOrReason(&st.BingAnalysis),
			"reddit": analysisOrReason(&st.RedditAnalysis),
		},
	})
}
