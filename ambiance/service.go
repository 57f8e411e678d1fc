package ambiance

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultDuration = 15.0

	// Prompt influence for one-off generation and for page music.
	generateInfluence = 0.5
	pageInfluence     = 0.7
)

// Options wires a Service.
type Options struct {
	Analyzer   Analyzer
	Process    *ProcessAnalyzer
	ElevenLabs *ElevenLabs
	Fallback   *FallbackAudio
	Cache      AudioCache
	// MusicTTL is how long page music stays cached.
	MusicTTL time.Duration
}

// Service analyses text and produces background audio for it. Generation
// failures never surface as errors: the fallback chain always yields audio.
type Service struct {
	analyzer Analyzer
	process  *ProcessAnalyzer
	voice    *ElevenLabs
	fallback *FallbackAudio
	cache    AudioCache
	musicTTL time.Duration
}

func NewService(opts Options) *Service {
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = KeywordAnalyzer{}
	}
	return &Service{
		analyzer: analyzer,
		process:  opts.Process,
		voice:    opts.ElevenLabs,
		fallback: opts.Fallback,
		cache:    opts.Cache,
		musicTTL: opts.MusicTTL,
	}
}

// ElevenLabs returns the audio API client.
func (s *Service) ElevenLabs() *ElevenLabs { return s.voice }

// PingCache checks a remote audio cache. checked is false for the
// in-process cache, which has nothing to reach.
func (s *Service) PingCache(ctx context.Context) (checked bool, err error) {
	p, ok := s.cache.(interface{ Ping(context.Context) error })
	if !ok {
		return false, nil
	}
	return true, p.Ping(ctx)
}

// AnalyzerAvailable reports whether the external analyzer can be started.
func (s *Service) AnalyzerAvailable() bool {
	return s.process.Available()
}

// Analyze runs the configured analyzer, degrading to a neutral result.
func (s *Service) Analyze(ctx context.Context, text string) Result {
	res, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		slog.Warn("ambiance: analysis failed", "error", err)
		return neutralResult(err.Error())
	}
	if res.AmbiancePrompt == "" {
		res.AmbiancePrompt = DefaultPrompt
	}
	if res.Mood == "" {
		res.Mood = MoodNeutral
	}
	return res
}

// Generate produces a 15 second clip for text.
func (s *Service) Generate(ctx context.Context, text string) Audio {
	res := s.Analyze(ctx, text)
	return s.render(ctx, res, SoundRequest{
		Text:            res.AmbiancePrompt,
		DurationSeconds: defaultDuration,
		PromptInfluence: generateInfluence,
	})
}

// PageRequest asks for music matching one page of a book.
type PageRequest struct {
	Text     string
	Duration float64
	Page     *int
	BookID   *int
}

// GenerateFromText produces music for a page. When the page is known the
// result is cached and served from the cache on later calls. Fallback audio
// is never cached.
func (s *Service) GenerateFromText(ctx context.Context, req PageRequest) Audio {
	var key string
	if req.Page != nil && s.cache != nil {
		key = MusicCacheKey(req.BookID, *req.Page)
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("ambiance: music cache read failed", "key", key, "error", err)
		}
		if ok {
			musicCache.WithLabelValues("hit").Inc()
			return Audio{
				Data:        cached.Audio,
				ContentType: cached.ContentType,
				Mood:        cached.Mood,
				Prompt:      cached.AmbiancePrompt,
				Cached:      true,
			}
		}
		musicCache.WithLabelValues("miss").Inc()
	}

	duration := req.Duration
	if duration <= 0 {
		duration = defaultDuration
	}

	res := s.Analyze(ctx, req.Text)
	audio := s.render(ctx, res, SoundRequest{
		Text:            res.AmbiancePrompt,
		DurationSeconds: duration,
		PromptInfluence: pageInfluence,
	})

	if key != "" && !audio.Fallback {
		err := s.cache.Set(ctx, key, CachedAudio{
			Audio:          audio.Data,
			ContentType:    audio.ContentType,
			Mood:           audio.Mood,
			AmbiancePrompt: audio.Prompt,
		}, s.musicTTL)
		if err != nil {
			slog.Warn("ambiance: music cache write failed", "key", key, "error", err)
		}
	}
	return audio
}

func (s *Service) render(ctx context.Context, res Result, sr SoundRequest) Audio {
	data, err := s.voice.Generate(ctx, sr)
	if err != nil {
		slog.Warn("ambiance: generation failed, serving fallback audio",
			"mood", res.Mood, "error", err)
		audio := s.fallback.Load(res.Mood)
		audio.Prompt = res.AmbiancePrompt
		audio.Err = err
		return audio
	}
	return Audio{
		Data:        data,
		ContentType: AudioContentType(data),
		Mood:        res.Mood,
		Prompt:      res.AmbiancePrompt,
	}
}
