package telemetry

import (
	"database/sql"
	"time"
)

// Stats is the aggregate shape GET /api/stats returns.
type Stats struct {
	SessionCount          int
	ExchangeCount         int
	LLMCallCount          int
	TokensIn              int
	TokensOut             int
	ErrorCount            int
	AvgPhaseDurationsMS   map[string]float64
	FeatureCounts         map[string]int
	RoutingPathCounts     map[string]int
	SessionsToday         int
}

// QueryStats aggregates counters across every table. db may be a
// read-write or read-only handle.
func QueryStats(db *sql.DB) (Stats, error) {
	stats := Stats{
		AvgPhaseDurationsMS: map[string]float64{},
		FeatureCounts:       map[string]int{},
		RoutingPathCounts:   map[string]int{},
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&stats.SessionCount); err != nil {
		return stats, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM exchanges`).Scan(&stats.ExchangeCount); err != nil {
		return stats, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM llm_calls`).Scan(&stats.LLMCallCount); err != nil {
		return stats, err
	}
	var tokensIn, tokensOut sql.NullInt64
	if err := db.QueryRow(`SELECT COALESCE(SUM(input_tokens),0), COALESCE(SUM(output_tokens),0) FROM llm_calls`).
		Scan(&tokensIn, &tokensOut); err != nil {
		return stats, err
	}
	stats.TokensIn = int(tokensIn.Int64)
	stats.TokensOut = int(tokensOut.Int64)

	if err := db.QueryRow(`SELECT COUNT(*) FROM exchanges WHERE error IS NOT NULL AND error != ''`).
		Scan(&stats.ErrorCount); err != nil {
		return stats, err
	}

	todayStart := time.Now().Truncate(24 * time.Hour).UnixMilli()
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE created_at >= ?`, todayStart).
		Scan(&stats.SessionsToday); err != nil {
		return stats, err
	}

	phaseCols := map[string][2]string{
		"recording": {"recording_started_at", "recording_ended_at"},
		"stt":       {"stt_started_at", "stt_ended_at"},
		"routing":   {"routing_started_at", "routing_ended_at"},
		"tts":       {"tts_started_at", "tts_ended_at"},
		"playback":  {"playback_started_at", "playback_ended_at"},
	}
	for phase, cols := range phaseCols {
		var avg sql.NullFloat64
		q := `SELECT AVG(` + cols[1] + ` - ` + cols[0] + `) FROM exchanges WHERE ` +
			cols[0] + ` IS NOT NULL AND ` + cols[1] + ` IS NOT NULL`
		if err := db.QueryRow(q).Scan(&avg); err != nil {
			return stats, err
		}
		stats.AvgPhaseDurationsMS[phase] = avg.Float64
	}

	rows, err := db.Query(
		`SELECT matched_feature, COUNT(*) FROM exchanges WHERE matched_feature IS NOT NULL AND matched_feature != '' GROUP BY matched_feature`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var feature string
		var count int
		if err := rows.Scan(&feature, &count); err != nil {
			return stats, err
		}
		stats.FeatureCounts[feature] = count
	}

	pathRows, err := db.Query(
		`SELECT routing_path, COUNT(*) FROM exchanges WHERE routing_path IS NOT NULL AND routing_path != '' GROUP BY routing_path`)
	if err != nil {
		return stats, err
	}
	defer pathRows.Close()
	for pathRows.Next() {
		var path string
		var count int
		if err := pathRows.Scan(&path, &count); err != nil {
			return stats, err
		}
		stats.RoutingPathCounts[path] = count
	}

	return stats, nil
}

// SessionSummary is the shape GET /api/sessions?limit&offset returns per
// row.
type SessionSummary struct {
	ID                  string
	StartedAt           time.Time
	EndedAt             time.Time
	ExchangeCount       int
	FirstTranscription  string
	Features            []string
	HadError            bool
	DurationMS          int64
}

// QuerySessions returns a page of session summaries ordered most-recent
// first. limit is the caller's responsibility to clamp (the web layer
// clamps to 200 per spec.md §4.10).
func QuerySessions(db *sql.DB, limit, offset int) ([]SessionSummary, error) {
	rows, err := db.Query(
		`SELECT id, started_at, ended_at FROM sessions ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var id string
		var startedAt, endedAt int64
		if err := rows.Scan(&id, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		summary := SessionSummary{
			ID:        id,
			StartedAt: time.UnixMilli(startedAt),
			EndedAt:   time.UnixMilli(endedAt),
		}
		summary.DurationMS = durationMS(summary.StartedAt, summary.EndedAt)

		if err := db.QueryRow(`SELECT COUNT(*) FROM exchanges WHERE session_id = ?`, id).
			Scan(&summary.ExchangeCount); err != nil {
			return nil, err
		}

		var firstTranscription sql.NullString
		if err := db.QueryRow(
			`SELECT transcription FROM exchanges WHERE session_id = ? ORDER BY sequence ASC LIMIT 1`, id,
		).Scan(&firstTranscription); err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		summary.FirstTranscription = firstTranscription.String

		featureRows, err := db.Query(
			`SELECT DISTINCT matched_feature FROM exchanges WHERE session_id = ? AND matched_feature IS NOT NULL AND matched_feature != ''`, id)
		if err != nil {
			return nil, err
		}
		for featureRows.Next() {
			var feature string
			if err := featureRows.Scan(&feature); err != nil {
				featureRows.Close()
				return nil, err
			}
			summary.Features = append(summary.Features, feature)
		}
		featureRows.Close()

		var errCount int
		if err := db.QueryRow(
			`SELECT COUNT(*) FROM exchanges WHERE session_id = ? AND error IS NOT NULL AND error != ''`, id,
		).Scan(&errCount); err != nil {
			return nil, err
		}
		summary.HadError = errCount > 0

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// QuerySessionDetail loads a full Session, every owned Exchange in
// sequence order, and every Exchange's LLMCalls, or (nil, nil) if id is
// unknown.
func QuerySessionDetail(db *sql.DB, id string) (*Session, error) {
	var startedAt, endedAt int64
	var wakeModel string
	err := db.QueryRow(`SELECT started_at, ended_at, wake_model FROM sessions WHERE id = ?`, id).
		Scan(&startedAt, &endedAt, &wakeModel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        id,
		StartedAt: time.UnixMilli(startedAt),
		EndedAt:   time.UnixMilli(endedAt),
		WakeModel: wakeModel,
	}

	rows, err := db.Query(`
		SELECT id, sequence, is_follow_up,
			recording_started_at, recording_ended_at,
			stt_started_at, stt_ended_at,
			routing_started_at, routing_ended_at,
			tts_started_at, tts_ended_at,
			playback_started_at, playback_ended_at,
			transcription, routing_path, matched_feature, feature_action, response_text,
			used_vad, had_bargein, error
		FROM exchanges WHERE session_id = ? ORDER BY sequence ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ex Exchange
		var exID string
		var isFollowUp, usedVAD, hadBargein int
		var recStart, recEnd, sttStart, sttEnd, routeStart, routeEnd, ttsStart, ttsEnd, playStart, playEnd sql.NullInt64
		var transcription, routingPath, matchedFeature, featureAction, responseText, errStr sql.NullString

		if err := rows.Scan(
			&exID, &ex.Sequence, &isFollowUp,
			&recStart, &recEnd, &sttStart, &sttEnd, &routeStart, &routeEnd, &ttsStart, &ttsEnd, &playStart, &playEnd,
			&transcription, &routingPath, &matchedFeature, &featureAction, &responseText,
			&usedVAD, &hadBargein, &errStr,
		); err != nil {
			return nil, err
		}

		ex.ID = exID
		ex.SessionID = id
		ex.IsFollowUp = isFollowUp != 0
		ex.Recording = PhaseTiming{StartedAt: millisTime(recStart), EndedAt: millisTime(recEnd)}
		ex.STT = PhaseTiming{StartedAt: millisTime(sttStart), EndedAt: millisTime(sttEnd)}
		ex.Routing = PhaseTiming{StartedAt: millisTime(routeStart), EndedAt: millisTime(routeEnd)}
		ex.TTS = PhaseTiming{StartedAt: millisTime(ttsStart), EndedAt: millisTime(ttsEnd)}
		ex.Playback = PhaseTiming{StartedAt: millisTime(playStart), EndedAt: millisTime(playEnd)}
		ex.Transcription = transcription.String
		ex.RoutingPath = RoutingPath(routingPath.String)
		ex.MatchedFeature = matchedFeature.String
		ex.FeatureAction = featureAction.String
		ex.ResponseText = responseText.String
		ex.UsedVAD = usedVAD != 0
		ex.HadBargein = hadBargein != 0
		ex.Error = errStr.String

		calls, err := queryLLMCalls(db, exID)
		if err != nil {
			return nil, err
		}
		ex.LLMCalls = calls

		sess.Exchanges = append(sess.Exchanges, ex)
	}

	return sess, nil
}

func queryLLMCalls(db *sql.DB, exchangeID string) ([]LLMCall, error) {
	rows, err := db.Query(`
		SELECT id, call_type, started_at, ended_at, model, system_prompt, user_message,
			response_text, input_tokens, output_tokens, stop_reason, error
		FROM llm_calls WHERE exchange_id = ? ORDER BY started_at ASC`, exchangeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []LLMCall
	for rows.Next() {
		var call LLMCall
		var started, ended sql.NullInt64
		var model, systemPrompt, userMessage, responseText, stopReason, errStr sql.NullString
		if err := rows.Scan(
			&call.ID, &call.CallType, &started, &ended, &model, &systemPrompt, &userMessage,
			&responseText, &call.InputTokens, &call.OutputTokens, &stopReason, &errStr,
		); err != nil {
			return nil, err
		}
		call.ExchangeID = exchangeID
		call.StartedAt = millisTime(started)
		call.EndedAt = millisTime(ended)
		call.Model = model.String
		call.SystemPrompt = systemPrompt.String
		call.UserMessage = userMessage.String
		call.ResponseText = responseText.String
		call.StopReason = stopReason.String
		call.Error = errStr.String
		calls = append(calls, call)
	}
	return calls, nil
}

func millisTime(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64)
}
