package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

type fakeTTSForCache struct {
	fail map[string]bool
}

func (f *fakeTTSForCache) Synthesize(ctx context.Context, text string) (audioio.Frame, error) {
	if f.fail[text] {
		return nil, errors.New("synth failed")
	}
	return audioio.Frame(text), nil
}

func (f *fakeTTSForCache) StreamSynthesize(ctx context.Context, text string, onChunk func(audioio.Frame) error) error {
	return nil
}
func (f *fakeTTSForCache) Abort() error  { return nil }
func (f *fakeTTSForCache) Name() string  { return "fake" }

func TestPromptCachePicksAmongSynthesizedClips(t *testing.T) {
	provider := &fakeTTSForCache{}
	cache := NewPromptCache(context.Background(), provider, []string{"one", "two", "three"}, nil)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[string(cache.Pick())] = true
	}
	if len(seen) == 0 {
		t.Fatal("expected Pick to return at least one clip")
	}
	for clip := range seen {
		if clip != "one" && clip != "two" && clip != "three" {
			t.Fatalf("unexpected clip %q", clip)
		}
	}
}

func TestPromptCacheSkipsFailedPhrases(t *testing.T) {
	provider := &fakeTTSForCache{fail: map[string]bool{"bad": true}}
	cache := NewPromptCache(context.Background(), provider, []string{"bad", "good"}, nil)

	for i := 0; i < 20; i++ {
		if string(cache.Pick()) != "good" {
			t.Fatalf("expected only the surviving phrase to be picked, got %q", cache.Pick())
		}
	}
}

func TestPromptCacheFallsBackToSilenceWhenAllFail(t *testing.T) {
	provider := &fakeTTSForCache{fail: map[string]bool{"bad": true}}
	cache := NewPromptCache(context.Background(), provider, []string{"bad"}, nil)

	clip := cache.Pick()
	if len(clip) == 0 {
		t.Fatal("expected a non-empty silence clip")
	}
	for _, b := range clip {
		if b != 0 {
			t.Fatal("expected silence clip to be all-zero bytes")
		}
	}
}
