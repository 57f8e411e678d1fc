package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/storia/ambiance"
)

// MusicHandler serves generated background audio and ambiance analysis.
type MusicHandler struct {
	svc *ambiance.Service
}

func NewMusicHandler(svc *ambiance.Service) *MusicHandler {
	return &MusicHandler{svc: svc}
}

type textRequest struct {
	Text string `json:"text"`
}

type pageMusicRequest struct {
	Text     string   `json:"text"`
	Duration float64  `json:"duration"`
	Page     *flexInt `json:"page"`
	BookID   *flexInt `json:"bookId"`
}

func bindText(c *gin.Context) (string, bool) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text content is required"})
		return "", false
	}
	return req.Text, true
}

func writeAudio(c *gin.Context, a ambiance.Audio, withError bool) {
	c.Header("X-Detected-Mood", a.Mood)
	c.Header("X-Ambiance-Prompt", ambiance.TruncatePrompt(a.Prompt))
	if a.Fallback {
		c.Header("X-Fallback-Audio", "true")
		if withError && a.Err != nil {
			c.Header("X-Error", a.Err.Error())
		}
	}
	if a.Cached {
		c.Header("X-Cached", "true")
	}
	c.Data(http.StatusOK, a.ContentType, a.Data)
}

// Generate handles POST /api/music/generate.
func (h *MusicHandler) Generate(c *gin.Context) {
	text, ok := bindText(c)
	if !ok {
		return
	}
	writeAudio(c, h.svc.Generate(c.Request.Context(), text), false)
}

// GenerateFromText handles POST /api/music/generate-from-text. Music for a
// known page is cached.
func (h *MusicHandler) GenerateFromText(c *gin.Context) {
	var req pageMusicRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text content is required"})
		return
	}
	pr := ambiance.PageRequest{Text: req.Text, Duration: req.Duration}
	if req.Page != nil {
		p := int(*req.Page)
		pr.Page = &p
	}
	if req.BookID != nil {
		id := int(*req.BookID)
		pr.BookID = &id
	}
	writeAudio(c, h.svc.GenerateFromText(c.Request.Context(), pr), true)
}

// Ambiance handles POST /api/ambiance/generate.
func (h *MusicHandler) Ambiance(c *gin.Context) {
	text, ok := bindText(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.Analyze(c.Request.Context(), text))
}

// DebugAmbiance handles POST /api/debug/ambiance.
func (h *MusicHandler) DebugAmbiance(c *gin.Context) {
	text, ok := bindText(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"result":             h.svc.Analyze(c.Request.Context(), text),
		"analyzer_available": h.svc.AnalyzerAvailable(),
		"timestamp":          time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// TestAudio handles GET /api/test-audio.
func (h *MusicHandler) TestAudio(c *gin.Context) {
	mood := c.DefaultQuery("mood", ambiance.MoodNeutral)
	c.Header("X-Detected-Mood", mood)
	c.Header("X-Test-Audio", "true")
	c.Data(http.StatusOK, "audio/mpeg", make([]byte, ambiance.SilentAudioLen))
}
