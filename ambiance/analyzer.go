// Package ambiance derives a mood and a sound prompt from a page of text and
// turns the prompt into background audio through ElevenLabs, with a local
// fallback audio chain for when generation fails.
package ambiance

import (
	"context"
	"log/slog"
	"strings"
)

// DefaultPrompt is used whenever no analysis is available.
const DefaultPrompt = "Subtle neutral background ambiance with gentle soundscape"

// MoodNeutral is reported when no dominant mood is found.
const MoodNeutral = "neutral"

// Result is the outcome of analysing a text. Error carries a non-fatal
// problem met on the way; the prompt is always usable.
type Result struct {
	Mood           string   `json:"mood"`
	Setting        string   `json:"setting,omitempty"`
	AmbientSounds  []string `json:"ambient_sounds,omitempty"`
	AmbiancePrompt string   `json:"ambiance_prompt"`
	Error          string   `json:"error,omitempty"`
}

// Analyzer maps text to a mood and an ambiance prompt.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

// neutralResult is returned for texts too short or too broken to analyse.
func neutralResult(reason string) Result {
	return Result{
		Mood:           MoodNeutral,
		Setting:        "unspecified",
		AmbiancePrompt: DefaultPrompt,
		Error:          reason,
	}
}

// FallbackAnalyzer tries Primary first and uses Secondary when it fails or
// reports an error. The primary failure is kept in Result.Error.
type FallbackAnalyzer struct {
	Primary   Analyzer
	Secondary Analyzer
}

func (f FallbackAnalyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if f.Primary != nil {
		res, err := f.Primary.Analyze(ctx, text)
		switch {
		case err == nil && res.Error == "":
			analyses.WithLabelValues("primary", "ok").Inc()
			return res, nil
		case err == nil:
			analyses.WithLabelValues("primary", "degraded").Inc()
			slog.Warn("ambiance: analyzer reported a problem, using keywords", "error", res.Error)
			return f.secondary(ctx, text, res.Error)
		default:
			analyses.WithLabelValues("primary", "error").Inc()
			slog.Warn("ambiance: analyzer failed, using keywords", "error", err)
			return f.secondary(ctx, text, err.Error())
		}
	}
	return f.secondary(ctx, text, "")
}

func (f FallbackAnalyzer) secondary(ctx context.Context, text, primaryErr string) (Result, error) {
	if f.Secondary == nil {
		return neutralResult(primaryErr), nil
	}
	res, err := f.Secondary.Analyze(ctx, text)
	if err != nil {
		analyses.WithLabelValues("secondary", "error").Inc()
		msg := err.Error()
		if primaryErr != "" {
			msg = primaryErr + "; " + msg
		}
		return neutralResult(msg), nil
	}
	analyses.WithLabelValues("secondary", "ok").Inc()
	if primaryErr != "" {
		res.Error = strings.TrimPrefix(res.Error+"; "+primaryErr, "; ")
	}
	return res, nil
}
