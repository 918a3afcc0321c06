// Package pipeline implements the Voice Pipeline Orchestrator (C8): the
// main loop that drives wake detection, capture, transcription, routing,
// synthesis, and playback through an explicit state machine, with barge-in
// monitoring and bounded-retry error recovery. Generalized from the
// teacher's ManagedStream/Orchestrator pair (pkg/orchestrator), which fused
// VAD+STT+LLM+TTS into one always-on streaming loop; here the same phases
// are pulled apart into the LISTENING → CAPTURING → TRANSCRIBING → ROUTING
// → SYNTHESIZING → PLAYING states spec.md §4.8 names explicitly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
	"github.com/lokutor-ai/voiceassistant/internal/config"
	"github.com/lokutor-ai/voiceassistant/internal/obslog"
	"github.com/lokutor-ai/voiceassistant/internal/router"
	"github.com/lokutor-ai/voiceassistant/internal/stt"
	"github.com/lokutor-ai/voiceassistant/internal/telemetry"
	"github.com/lokutor-ai/voiceassistant/internal/tts"
	"github.com/lokutor-ai/voiceassistant/internal/vad"
	"github.com/lokutor-ai/voiceassistant/internal/wake"
)

// maxFollowUps is the fixed anti-runaway bound from spec.md §4.8; the spec
// notes it is a guard rather than a product requirement, so it is not
// exposed as a config key.
const maxFollowUps = 10

// maxConsecutiveErrors caps the outer retry loop before the pipeline gives
// up and exits.
const maxConsecutiveErrors = 3

// bargeinDebounceChunks is the number of leading playback-monitor chunks
// ignored before barge-in detection begins, matching the "≥15 chunks @
// 80ms (≥1.2s)" boundary from spec.md §8.
const bargeinDebounceChunks = 15

// errStopped is returned internally when Stop was called mid-cycle; the
// outer loop treats it as a clean exit, not a retryable failure.
var errStopped = errors.New("pipeline: stopped")

// Orchestrator is the pipeline thread (C8). It is not safe for concurrent
// use; exactly one goroutine should call Run.
type Orchestrator struct {
	audio  audioio.Port
	wake   wake.Detector
	vadRec *vad.Recorder
	stt    stt.Provider
	tts    tts.Provider
	router *router.Router
	store  *telemetry.Store
	cache  *PromptCache
	logger obslog.Logger

	running atomic.Bool

	recordDuration time.Duration
	wakeFeedback   bool
	vadEnabled     bool
	bargeinEnabled bool
	wakeChunkMS    time.Duration

	// backoff is overridable by tests so the retry loop doesn't sleep
	// real wall-clock seconds; defaults to backoffSchedule.
	backoff func(n int) time.Duration

	// onExchange, if set, is called after every completed Exchange
	// (including errored ones) so features like builtin.RepeatFeature can
	// observe what was just spoken.
	onExchange func(telemetry.Exchange)
}

// SetExchangeObserver registers a callback invoked after each Exchange
// completes, before the Session is persisted.
func (o *Orchestrator) SetExchangeObserver(fn func(telemetry.Exchange)) {
	o.onExchange = fn
}

// New builds an Orchestrator. store and cache may be nil: a nil store skips
// telemetry persistence, a nil cache skips wake/follow-up acknowledgements.
// vadRec may be nil, in which case capture always falls back to a fixed
// duration recording regardless of voice_vad_enabled.
func New(
	audio audioio.Port,
	wakeDetector wake.Detector,
	vadRec *vad.Recorder,
	sttProvider stt.Provider,
	ttsProvider tts.Provider,
	r *router.Router,
	store *telemetry.Store,
	cache *PromptCache,
	cfg config.Config,
	logger obslog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		audio:  audio,
		wake:   wakeDetector,
		vadRec: vadRec,
		stt:    sttProvider,
		tts:    ttsProvider,
		router: r,
		store:  store,
		cache:  cache,
		logger: obslog.Default(logger),

		recordDuration: cfg.Duration(config.KeyVoiceRecordDuration, 5*time.Second),
		wakeFeedback:   cfg.Bool(config.KeyVoiceWakeFeedback, true),
		vadEnabled:     cfg.Bool(config.KeyVoiceVADEnabled, true) && vadRec != nil,
		bargeinEnabled: cfg.Bool(config.KeyVoiceBargeinEnabled, true),
		wakeChunkMS:    time.Duration(cfg.Int(config.KeyWakeChunkMS, 80)) * time.Millisecond,
		backoff:        backoffSchedule,
	}
	o.running.Store(true)
	return o
}

// Run drives the pipeline until ctx is cancelled, Stop is called, or three
// consecutive cycles fail. Each cycle is one LISTENING→...→LISTENING span
// (spec.md §4.8's "Session creation on the wake→CAPTURING transition").
func (o *Orchestrator) Run(ctx context.Context) error {
	consecutiveErrors := 0
	for o.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := o.runCycle(ctx)
		if err == nil {
			consecutiveErrors = 0
			continue
		}
		if errors.Is(err, errStopped) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}

		consecutiveErrors++
		o.logger.Error("pipeline cycle failed", "error", err, "consecutive_errors", consecutiveErrors)
		if consecutiveErrors >= maxConsecutiveErrors {
			o.logger.Error("max consecutive errors reached, exiting pipeline")
			return err
		}

		wait := o.backoff(consecutiveErrors)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// Stop requests the pipeline return to an idle state at the next poll
// point. Safe to call from any goroutine.
func (o *Orchestrator) Stop() {
	o.running.Store(false)
}

// Close releases the audio device and feature/LLM resources owned by the
// router.
func (o *Orchestrator) Close() error {
	o.router.Close()
	return o.audio.Close()
}

// runCycle is one wake→...→LISTENING span: a Session plus however many
// Exchanges chain off it via follow-up or barge-in continuation.
func (o *Orchestrator) runCycle(ctx context.Context) error {
	if err := o.listenForWake(ctx); err != nil {
		return err
	}
	o.wake.Reset()

	sess := &telemetry.Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		WakeModel: o.wake.Name(),
	}
	o.ack(ctx)

	pendingBargein := false
	for sequence := 0; ; sequence++ {
		if sequence >= maxFollowUps {
			o.logger.Warn("follow-up cap reached, returning to listening", "cap", maxFollowUps)
			break
		}
		if err := o.pollRunning(ctx); err != nil {
			break
		}

		if sequence > 0 {
			o.ack(ctx)
		}

		ex := &telemetry.Exchange{SessionID: sess.ID, Sequence: sequence, IsFollowUp: sequence > 0, HadBargein: pendingBargein}
		pendingBargein = false

		continueFollowUp, bargein, empty, err := o.runExchange(ctx, ex)
		if empty {
			break
		}
		if err != nil {
			ex.Error = err.Error()
		}
		sess.Exchanges = append(sess.Exchanges, *ex)
		if o.onExchange != nil {
			o.onExchange(*ex)
		}
		if err != nil {
			o.finishSession(sess)
			return err
		}
		if bargein {
			pendingBargein = true
			continue
		}
		if continueFollowUp {
			continue
		}
		break
	}

	sess.EndedAt = time.Now()
	o.finishSession(sess)
	return nil
}

// finishSession appends a completed (possibly error-terminated) Session to
// the telemetry store. Failures are logged and swallowed per spec.md §4.8's
// "telemetry failures are non-fatal".
func (o *Orchestrator) finishSession(sess *telemetry.Session) {
	if o.store == nil {
		return
	}
	if sess.EndedAt.IsZero() {
		sess.EndedAt = time.Now()
	}
	if err := o.store.SaveSession(*sess); err != nil {
		o.logger.Warn("telemetry save failed", "error", err)
	}
}

func (o *Orchestrator) pollRunning(ctx context.Context) error {
	if !o.running.Load() {
		return errStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// listenForWake blocks on a fresh capture stream until the wake detector
// fires, ctx is cancelled, or the pipeline is stopped. The stream is always
// closed before returning, per spec.md §5's device discipline: the
// wake-listening stream must close before CAPTURING opens its own.
func (o *Orchestrator) listenForWake(ctx context.Context) error {
	stream, err := o.audio.Stream(ctx, o.wakeChunkMS)
	if err != nil {
		return fmt.Errorf("pipeline: open wake stream: %w", err)
	}
	defer stream.Close()

	for {
		if err := o.pollRunning(ctx); err != nil {
			return err
		}
		chunk, err := stream.Next(ctx)
		if err != nil {
			return fmt.Errorf("pipeline: wake stream: %w", err)
		}
		if o.wake.Detect(chunk) {
			return nil
		}
	}
}

// ack plays a random PromptCache clip, if one is configured and wake
// feedback is enabled. Failures are logged; a missed acknowledgement is
// never fatal to the exchange.
func (o *Orchestrator) ack(ctx context.Context) {
	if o.cache == nil || !o.wakeFeedback {
		return
	}
	if err := o.audio.Play(ctx, o.cache.Pick()); err != nil {
		o.logger.Warn("wake acknowledgement playback failed", "error", err)
	}
}

// runExchange drives CAPTURING→TRANSCRIBING→ROUTING→SYNTHESIZING→PLAYING
// for one Exchange. It returns whether the router expects a follow-up,
// whether playback was interrupted by barge-in, whether the exchange was
// aborted on an empty transcription (in which case it must not be recorded
// per spec.md §4.8's "abort, no exchange recorded after STT"), and any
// stage error.
func (o *Orchestrator) runExchange(ctx context.Context, ex *telemetry.Exchange) (continueFollowUp, bargein, empty bool, err error) {
	pcm, err := o.capture(ctx, ex)
	if err != nil {
		return false, false, false, fmt.Errorf("capture: %w", err)
	}

	ex.STT.StartedAt = time.Now()
	text, err := o.stt.Transcribe(ctx, pcm)
	ex.STT.EndedAt = time.Now()
	if err != nil {
		return false, false, false, fmt.Errorf("transcribe: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		o.logger.Info("empty transcription, returning to listening")
		return false, false, true, nil
	}
	ex.Transcription = text

	ex.Routing.StartedAt = time.Now()
	result := o.router.Route(ctx, text)
	ex.Routing.EndedAt = time.Now()
	o.harvestRoute(ex, result)

	bargein, err = o.speak(ctx, ex, result.Response)
	if err != nil {
		return false, bargein, false, fmt.Errorf("speak: %w", err)
	}
	if bargein {
		return false, true, false, nil
	}

	return result.Route.ExpectsFollowUp, false, false, nil
}

// capture dispatches to the VAD recorder or a fixed-duration recording per
// spec.md §4.8's "Capture dispatch" rule.
func (o *Orchestrator) capture(ctx context.Context, ex *telemetry.Exchange) (audioio.Frame, error) {
	ex.Recording.StartedAt = time.Now()
	defer func() { ex.Recording.EndedAt = time.Now() }()

	if o.vadEnabled {
		stream, err := o.audio.Stream(ctx, o.wakeChunkMS)
		if err != nil {
			return nil, fmt.Errorf("open capture stream: %w", err)
		}
		ex.UsedVAD = true
		return o.vadRec.Capture(ctx, stream)
	}
	return o.audio.Record(ctx, o.recordDuration)
}

// harvestRoute copies router.Result into the Exchange, per spec.md §4.8's
// "Exchange finalization" rule.
func (o *Orchestrator) harvestRoute(ex *telemetry.Exchange, result router.Result) {
	ex.RoutingPath = telemetry.RoutingPath(result.Route.Path)
	ex.MatchedFeature = result.Route.MatchedFeature
	ex.FeatureAction = result.Route.FeatureAction
	ex.ResponseText = result.Response

	for _, c := range result.LLMCalls {
		ex.LLMCalls = append(ex.LLMCalls, telemetry.LLMCall{
			CallType:     telemetry.CallType(c.CallType),
			StartedAt:    c.StartedAt,
			EndedAt:      c.EndedAt,
			Model:        c.Model,
			SystemPrompt: c.SystemPrompt,
			UserMessage:  c.UserMessage,
			ResponseText: c.ResponseText,
			InputTokens:  c.InputTokens,
			OutputTokens: c.OutputTokens,
			StopReason:   c.StopReason,
			Error:        c.Error,
		})
	}
}

// speak synthesizes and plays the response, routing through the
// barge-in-aware path when streaming playback is enabled. It reports
// whether playback was cut short by a detected barge-in.
func (o *Orchestrator) speak(ctx context.Context, ex *telemetry.Exchange, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		now := time.Now()
		ex.TTS = telemetry.PhaseTiming{StartedAt: now, EndedAt: now}
		ex.Playback = telemetry.PhaseTiming{StartedAt: now, EndedAt: now}
		return false, nil
	}

	if !o.bargeinEnabled {
		return false, o.speakBlocking(ctx, ex, text)
	}
	return o.speakWithBargein(ctx, ex, text)
}

func (o *Orchestrator) speakBlocking(ctx context.Context, ex *telemetry.Exchange, text string) error {
	ex.TTS.StartedAt = time.Now()
	pcm, err := o.tts.Synthesize(ctx, text)
	ex.TTS.EndedAt = time.Now()
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	ex.Playback.StartedAt = time.Now()
	err = o.audio.Play(ctx, pcm)
	ex.Playback.EndedAt = time.Now()
	return err
}

// speakWithBargein streams the reply, then reuses the pipeline thread to
// monitor the microphone for a wake trigger while the device plays the
// queued audio asynchronously, per spec.md §5's "no extra thread required".
func (o *Orchestrator) speakWithBargein(ctx context.Context, ex *telemetry.Exchange, text string) (bool, error) {
	ex.TTS.StartedAt = time.Now()
	var frames []audioio.Frame
	err := o.tts.StreamSynthesize(ctx, text, func(f audioio.Frame) error {
		frames = append(frames, f)
		return nil
	})
	ex.TTS.EndedAt = time.Now()
	if err != nil {
		return false, fmt.Errorf("stream synthesize: %w", err)
	}

	ex.Playback.StartedAt = time.Now()
	if err := o.audio.PlayStreamed(ctx, audioio.NewSliceStream(frames)); err != nil {
		ex.Playback.EndedAt = time.Now()
		return false, fmt.Errorf("play streamed: %w", err)
	}

	o.wake.Reset()
	bargein, err := o.monitorBargein(ctx)
	ex.Playback.EndedAt = time.Now()
	return bargein, err
}

// monitorBargein watches microphone chunks while the device finishes
// playing the queued reply, skipping the first bargeinDebounceChunks to
// avoid the speaker-to-microphone echo self-triggering the wake detector.
func (o *Orchestrator) monitorBargein(ctx context.Context) (bool, error) {
	stream, err := o.audio.Stream(ctx, o.wakeChunkMS)
	if err != nil {
		return false, fmt.Errorf("open bargein monitor stream: %w", err)
	}
	defer stream.Close()

	chunkIdx := 0
	for o.audio.IsPlaying() {
		chunk, err := stream.Next(ctx)
		if err != nil {
			return false, fmt.Errorf("bargein monitor: %w", err)
		}
		chunkIdx++
		if chunkIdx <= bargeinDebounceChunks {
			continue
		}
		if o.wake.Detect(chunk) {
			o.audio.StopPlayback()
			o.wake.Reset()
			return true, nil
		}
	}
	return false, nil
}
