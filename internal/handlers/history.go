// server/internal/handlers/history.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Freedomtukun/free-yoga/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type HistoryHandler struct {
	log     *zap.Logger
	records RecordStore
}

func NewHistoryHandler(log *zap.Logger, records RecordStore) *HistoryHandler {
	return &HistoryHandler{log: log, records: records}
}

func limitFromQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	return min(limit, maxHistoryLimit)
}

// Attempts lists the caller's most recent pose attempts.
func (h *HistoryHandler) Attempts(c *gin.Context) {
	user := currentUser(c)
	attempts, err := h.records.ListAttempts(c.Request.Context(), user, limitFromQuery(c))
	if err != nil {
		respondError(c, h.log, err, "Failed to load attempts")
		return
	}
	records := make([]any, len(attempts))
	for i, a := range attempts {
		records[i] = gin.H{"sequenceId": a.SequenceID, "record": a.ToRecord()}
	}
	c.JSON(http.StatusOK, gin.H{"attempts": records})
}

// Results lists the caller's most recent practice sessions.
func (h *HistoryHandler) Results(c *gin.Context) {
	results, err := h.records.ListResults(c.Request.Context(), currentUser(c), limitFromQuery(c))
	if err != nil {
		respondError(c, h.log, err, "Failed to load practice results")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *HistoryHandler) Poses(c *gin.Context) {
	poses, err := h.records.GetPracticedPoses(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err, "Failed to load practiced poses")
		return
	}
	c.JSON(http.StatusOK, gin.H{"poses": poses})
}

// Chart renders an HTML line chart of the caller's accuracy on one pose. The
// most practiced pose is used when none is selected.
func (h *HistoryHandler) Chart(c *gin.Context) {
	user := currentUser(c)
	poseID := c.Query("pose")
	poseName := poseID

	if poseID == "" {
		poses, err := h.records.GetPracticedPoses(c.Request.Context(), user)
		if err != nil {
			h.log.Error("Failed to get practiced poses", zap.Error(err), zap.String("user", user))
			c.String(http.StatusInternalServerError, "Failed to load practice history")
			return
		}
		if len(poses) == 0 {
			c.String(http.StatusNotFound, "No practice history yet")
			return
		}
		poseID, poseName = poses[0].PoseID, poses[0].PoseName
	}

	timelineData, err := h.records.AccuracyTimeline(c.Request.Context(), user, poseID)
	if err != nil {
		h.log.Error("Failed to get timeline data", zap.Error(err), zap.String("poseID", poseID))
		c.String(http.StatusInternalServerError, "Failed to load timeline data")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := generateTimelineChart(timelineData, poseName).Render(c.Writer); err != nil {
		h.log.Error("Failed to render accuracy chart", zap.Error(err))
	}
}

func generateTimelineChart(data []repository.TimelineDataPoint, poseName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Accuracy Over Time",
			Subtitle: poseName,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "time",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Min:  0,
			Max:  100,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	// Create data points in the format [date, value]
	items := make([]opts.LineData, 0, len(data))
	for _, point := range data {
		items = append(items, opts.LineData{Value: []interface{}{point.Date, point.Value}})
	}

	line.AddSeries(fmt.Sprintf("%s accuracy", poseName), items).
		SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	return line
}
