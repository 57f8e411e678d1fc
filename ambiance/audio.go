package ambiance

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SilentAudioLen is the size of the zero-filled buffer served when no
// fallback file exists.
const SilentAudioLen = 1024

const defaultAudioType = "audio/mpeg"

// Audio is a playable result together with the metadata sent as headers.
type Audio struct {
	Data        []byte
	ContentType string
	Mood        string
	Prompt      string
	Fallback    bool
	Cached      bool
	// Err is the generation failure that led to the fallback, if any.
	Err error
}

// Bucket maps a detected mood to the name of its fallback audio file.
func Bucket(mood string) string {
	switch strings.ToLower(strings.TrimSpace(mood)) {
	case "happy", "joyful", "cheerful":
		return "happy"
	case "sad", "melancholic", "somber":
		return "sad"
	case "tense", "suspenseful", "anxious":
		return "tense"
	case "peaceful", "calm", "serene":
		return "peaceful"
	case "exciting", "thrilling", "energetic":
		return "exciting"
	case "romantic", "loving":
		return "romantic"
	case "mysterious", "enigmatic":
		return "mysterious"
	default:
		return MoodNeutral
	}
}

// TruncatePrompt shortens a prompt for the X-Ambiance-Prompt header.
func TruncatePrompt(prompt string) string {
	r := []rune(prompt)
	if len(r) <= 100 {
		return prompt
	}
	return string(r[:100]) + "..."
}

// AudioContentType sniffs the audio format, defaulting to audio/mpeg.
func AudioContentType(data []byte) string {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return m.String()
		}
	}
	return defaultAudioType
}

// FallbackAudio serves fallback-<bucket>.mp3 files from a directory.
type FallbackAudio struct {
	dir string
}

func NewFallbackAudio(dir string) *FallbackAudio {
	return &FallbackAudio{dir: dir}
}

// Load walks the fallback chain for mood: the bucket file, then the neutral
// file, then a silent buffer. The returned Audio reports mood only when the
// bucket file was used.
func (f *FallbackAudio) Load(mood string) Audio {
	bucket := Bucket(mood)
	if mood == "" {
		mood = MoodNeutral
	}

	if data, ok := f.read(bucket); ok {
		fallbacks.WithLabelValues("file").Inc()
		return Audio{Data: data, ContentType: AudioContentType(data), Mood: mood, Fallback: true}
	}
	if bucket != MoodNeutral {
		if data, ok := f.read(MoodNeutral); ok {
			fallbacks.WithLabelValues("neutral").Inc()
			return Audio{Data: data, ContentType: AudioContentType(data), Mood: MoodNeutral, Fallback: true}
		}
	}

	fallbacks.WithLabelValues("silence").Inc()
	return Audio{
		Data:        make([]byte, SilentAudioLen),
		ContentType: defaultAudioType,
		Mood:        MoodNeutral,
		Fallback:    true,
	}
}

func (f *FallbackAudio) read(bucket string) ([]byte, bool) {
	if f == nil || f.dir == "" {
		return nil, false
	}
	path := filepath.Join(f.dir, "fallback-"+bucket+".mp3")
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("ambiance: reading fallback audio failed", "path", path, "error", err)
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}
