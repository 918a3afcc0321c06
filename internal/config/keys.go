package config

// Named keys bound in spec.md §6, plus the provider-selection and secret keys
// needed to wire real backends (not named by the core spec, but required to
// run it).
const (
	KeyVoiceRecordDuration = "voice_record_duration"
	KeyVoiceWakeFeedback   = "voice_wake_feedback"
	KeyVoiceVADEnabled     = "voice_vad_enabled"
	KeyVoiceBargeinEnabled = "voice_bargein_enabled"

	KeyVADSilenceThreshold     = "vad_silence_threshold"
	KeyVADSilenceDuration      = "vad_silence_duration"
	KeyVADMinDuration          = "vad_min_duration"
	KeyVADMaxDuration          = "vad_max_duration"
	KeyVADSpeechChunksRequired = "vad_speech_chunks_required"

	// KeyWakeThreshold is the wake detector's own RMS energy gate, in [0,1]
	// of full scale (see internal/wake.EnergyGatedDetector). Distinct from
	// KeyVADSilenceThreshold: the two gates serve different concerns (wake
	// latching vs. end-of-speech detection) and are tuned independently
	// even though both are RMS-over-normalized-samples thresholds.
	KeyWakeThreshold      = "wake_threshold"
	KeyWakeMinRunChunks   = "wake_min_run_chunks"

	KeyIntentRecoveryEnabled = "intent_recovery_enabled"
	KeyLLMMaxHistory         = "llm_max_history"
	KeyLLMHistoryTTL         = "llm_history_ttl"
	KeyLLMIntentMaxTokens    = "llm_intent_max_tokens"
	KeyWakeModel             = "wake_model"

	KeyTelemetryDBPath      = "telemetry_db_path"
	KeyTelemetryMaxSizeBytes = "telemetry_max_size_bytes"
	KeyTelemetryWebAddr     = "telemetry_web_addr"

	KeySTTProvider = "stt_provider"
	KeyLLMProvider = "llm_provider"
	KeyTTSProvider = "tts_provider"

	KeyGroqAPIKey       = "groq_api_key"
	KeyOpenAIAPIKey     = "openai_api_key"
	KeyAnthropicAPIKey  = "anthropic_api_key"
	KeyDeepgramAPIKey   = "deepgram_api_key"
	KeyAssemblyAIAPIKey = "assemblyai_api_key"
	KeyLokutorAPIKey    = "lokutor_api_key"

	KeyWakeChunkMS = "wake_chunk_ms"
)
