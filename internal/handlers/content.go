package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/detector"
	"github.com/Freedomtukun/free-yoga/internal/metrics"
	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContentHandler struct {
	log     *zap.Logger
	content ContentStore
	records RecordStore
	cmp     metrics.Comparator
}

func NewContentHandler(log *zap.Logger, content ContentStore, records RecordStore, cmp metrics.Comparator) *ContentHandler {
	return &ContentHandler{log: log, content: content, records: records, cmp: cmp}
}

type analyzeRequest struct {
	detector.Frame
	Duration  int `json:"duration" binding:"min=0"`
	PoseIndex int `json:"poseIndex"`
}

func (h *ContentHandler) bindFrame(c *gin.Context) (*analyzeRequest, *models.KeypointSet, bool) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%v: %v", detector.ErrInvalidPayload, err)})
		return nil, nil, false
	}
	kp, err := req.KeypointSet()
	if err != nil {
		respondError(c, h.log, err, "Failed to decode keypoints")
		return nil, nil, false
	}
	return &req, kp, true
}

func (h *ContentHandler) ListPoses(c *gin.Context) {
	poses, err := h.content.ListPoses(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		respondError(c, h.log, err, "Failed to list poses")
		return
	}
	c.JSON(http.StatusOK, gin.H{"poses": poses})
}

func (h *ContentHandler) GetPose(c *gin.Context) {
	pose, err := h.content.GetPose(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "Failed to get pose")
		return
	}
	c.JSON(http.StatusOK, pose)
}

type poseAnalysisResponse struct {
	metrics.PoseAnalysis
	Saved bool `json:"saved"`
}

// AnalyzePose scores one detection against a reference pose. Signed-in users
// get the attempt saved to their history.
func (h *ContentHandler) AnalyzePose(c *gin.Context) {
	pose, err := h.content.GetPose(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "Failed to get pose")
		return
	}
	req, kp, ok := h.bindFrame(c)
	if !ok {
		return
	}

	resp := poseAnalysisResponse{PoseAnalysis: h.cmp.AnalyzePose(kp, *pose)}
	if user := currentUser(c); user != "" && resp.Detected {
		rec := models.PoseRecord{
			PoseID:          pose.ID,
			PoseName:        pose.DisplayName,
			Accuracy:        resp.Accuracy,
			DurationSeconds: req.Duration,
			Feedback:        resp.Feedback,
			Timestamp:       time.Now().UTC(),
		}
		if err := h.records.SaveAttempt(c.Request.Context(), user, "", rec); err != nil {
			h.log.Error("Failed to save pose attempt", zap.Error(err), zap.String("user", user), zap.String("pose", pose.ID))
		} else {
			resp.Saved = true
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ContentHandler) ListSequences(c *gin.Context) {
	sequences, err := h.content.ListSequences(c.Request.Context(), filterFromQuery(c), currentUser(c))
	if err != nil {
		respondError(c, h.log, err, "Failed to list sequences")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sequences": sequences})
}

func (h *ContentHandler) GetSequence(c *gin.Context) {
	seq, err := h.content.GetSequence(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, h.log, err, "Failed to get sequence")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sequence": seq, "totalDuration": seq.TotalDuration()})
}

func (h *ContentHandler) AnalyzeSequencePose(c *gin.Context) {
	seq, err := h.content.GetSequence(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, h.log, err, "Failed to get sequence")
		return
	}
	req, kp, ok := h.bindFrame(c)
	if !ok {
		return
	}
	analysis, err := h.cmp.AnalyzeSequencePose(kp, seq, req.PoseIndex)
	if err != nil {
		respondError(c, h.log, err, "Failed to analyze sequence pose")
		return
	}
	c.JSON(http.StatusOK, analysis)
}

type completeRequest struct {
	PoseRecords []models.PoseRecord `json:"poseRecords"`
	StartedAt   time.Time           `json:"startedAt"`
}

// CompleteSequence summarizes records collected by a client-driven practice
// run and stores them for signed-in users.
func (h *ContentHandler) CompleteSequence(c *gin.Context) {
	user := currentUser(c)
	seq, err := h.content.GetSequence(c.Request.Context(), c.Param("id"), user)
	if err != nil {
		respondError(c, h.log, err, "Failed to get sequence")
		return
	}
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data"})
		return
	}

	now := time.Now().UTC()
	if err := checkRecords(seq, req.PoseRecords, now); err != nil {
		respondError(c, h.log, err, "Invalid pose records")
		return
	}
	result := &models.SessionResult{
		SessionID:  uuid.NewString(),
		UserID:     user,
		SequenceID: seq.ID,
		Outcome:    models.OutcomeCompleted,
		Records:    req.PoseRecords,
		Summary:    metrics.Summarize(req.PoseRecords),
		StartedAt:  req.StartedAt,
		EndedAt:    now,
	}
	if result.StartedAt.IsZero() {
		result.StartedAt = now
	}

	if user != "" && len(result.Records) > 0 {
		if err := h.records.SaveSession(c.Request.Context(), result); err != nil {
			h.log.Error("Failed to save practice result", zap.Error(err), zap.String("user", user), zap.String("sequence", seq.ID))
		} else {
			result.Persisted = true
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": result.SessionID,
		"summary":   result.Summary,
		"persisted": result.Persisted,
	})
}

// checkRecords rejects records that are out of range or name a pose outside
// seq, and fills in pose names and timestamps the client left out.
func checkRecords(seq *models.Sequence, records []models.PoseRecord, now time.Time) error {
	for i := range records {
		rec := &records[i]
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		entry, ok := seq.Entry(rec.PoseID)
		if !ok {
			return fmt.Errorf("record %d: %w: pose %q is not part of sequence %q", i, models.ErrInvalidRecord, rec.PoseID, seq.ID)
		}
		if rec.PoseName == "" {
			rec.PoseName = entry.Pose.DisplayName
		}
		if rec.Timestamp.IsZero() {
			rec.Timestamp = now
		}
	}
	return nil
}
