package pipeline

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
	"github.com/lokutor-ai/voiceassistant/internal/obslog"
	"github.com/lokutor-ai/voiceassistant/internal/tts"
)

// PromptCache is the Prompt Cache (C11): a bank of phrases pre-synthesized
// once at startup so wake acknowledgements and follow-up prompts never pay
// TTS latency on the hot path.
type PromptCache struct {
	clips  []audioio.Frame
	logger obslog.Logger
}

// NewPromptCache synthesizes every phrase via provider concurrently (one
// call per phrase is independent, so there's no reason startup should pay
// for them serially). A phrase that fails to synthesize is skipped with a
// warning rather than aborting the whole cache. The returned cache is safe
// to use even if every phrase failed — Pick falls back to silence.
func NewPromptCache(ctx context.Context, provider tts.Provider, phrases []string, logger obslog.Logger) *PromptCache {
	logger = obslog.Default(logger)
	c := &PromptCache{logger: logger}

	clips := make([]audioio.Frame, len(phrases))
	g, gctx := errgroup.WithContext(ctx)
	for i, phrase := range phrases {
		i, phrase := i, phrase
		g.Go(func() error {
			clip, err := provider.Synthesize(gctx, phrase)
			if err != nil {
				logger.Warn("prompt cache: phrase synthesis failed, skipping", "phrase", phrase, "error", err)
				return nil
			}
			clips[i] = clip
			return nil
		})
	}
	_ = g.Wait()

	for _, clip := range clips {
		if clip != nil {
			c.clips = append(c.clips, clip)
		}
	}

	return c
}

// Pick returns a uniformly random pre-synthesized clip, or a short silence
// blob if every phrase failed to synthesize at startup.
func (c *PromptCache) Pick() audioio.Frame {
	if len(c.clips) == 0 {
		return tts.SilenceClip(0)
	}
	return c.clips[rand.Intn(len(c.clips))]
}

// DefaultAcknowledgementPhrases is a small pool of wake/follow-up
// acknowledgements, short enough to mask routing latency without
// overstaying their welcome.
var DefaultAcknowledgementPhrases = []string{
	"Mm-hmm.",
	"Go ahead.",
	"I'm listening.",
	"Yes?",
}
