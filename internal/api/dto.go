package api

import (
	"time"

	"github.com/verte-zerg/focusflow/internal/engine"
	"github.com/verte-zerg/focusflow/internal/model"
)

type startSessionRequest struct {
	DocumentName string `json:"documentName"`
	ReadingMode  string `json:"readingMode"`
}

type switchModeRequest struct {
	ReadingMode string `json:"readingMode"`
}

type triggerRequest struct {
	Timestamp int64 `json:"timestamp"`
}

type gazeSampleDTO struct {
	Timestamp    int64   `json:"timestamp"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	WordIndex    *int    `json:"wordIndex,omitempty"`
	LineNumber   *int    `json:"lineNumber,omitempty"`
	IsRegression bool    `json:"isRegression"`
}

type sessionDTO struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	DocumentName    string     `json:"documentName"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationSeconds int        `json:"durationSeconds"`
	ReadingMode     string     `json:"readingMode"`
	WordsRead       int        `json:"wordsRead"`
	RegressionCount int        `json:"regressionCount"`
	FocusScore      *float64   `json:"focusScore"`
	DroppedSamples  int        `json:"droppedSamples"`
}

type focusEventDTO struct {
	ID            int64   `json:"id"`
	SessionID     string  `json:"sessionId"`
	EventType     string  `json:"eventType"`
	Timestamp     int64   `json:"timestamp"`
	Confidence    float64 `json:"confidence"`
	TriggerAction string  `json:"triggerAction"`
}

type ingestResponse struct {
	Accepted    int             `json:"accepted"`
	Dropped     int             `json:"dropped"`
	FocusScore  float64         `json:"focusScore"`
	ReadingMode string          `json:"readingMode"`
	Events      []focusEventDTO `json:"events"`
}

type analyticsResponse struct {
	TotalSessions     int          `json:"totalSessions"`
	AverageFocusScore float64      `json:"averageFocusScore"`
	Sessions          []sessionDTO `json:"sessions"`
}

type preferencesDTO struct {
	DefaultReadingMode string `json:"defaultReadingMode"`
	BionicIntensity    int    `json:"bionicIntensity"`
	RSVPSpeed          int    `json:"rsvpSpeed"`
	BackgroundColor    string `json:"backgroundColor"`
	TextColor          string `json:"textColor"`
	FontSize           int    `json:"fontSize"`
	FontFamily         string `json:"fontFamily"`
	FocusMaskEnabled   bool   `json:"focusMaskEnabled"`
	AutoModeSwitch     bool   `json:"autoModeSwitch"`
	EyeTrackingEnabled bool   `json:"eyeTrackingEnabled"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func toSessionDTO(s model.ReadingSession) sessionDTO {
	return sessionDTO{
		ID:              s.ID,
		UserID:          s.UserID,
		DocumentName:    s.DocumentName,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationSeconds: s.DurationSeconds,
		ReadingMode:     string(s.ReadingMode),
		WordsRead:       s.WordsRead,
		RegressionCount: s.RegressionCount,
		FocusScore:      s.FocusScore,
		DroppedSamples:  s.DroppedSamples,
	}
}

func toEventDTO(ev model.FocusEvent) focusEventDTO {
	return focusEventDTO{
		ID:            ev.ID,
		SessionID:     ev.SessionID,
		EventType:     string(ev.Type),
		Timestamp:     ev.Timestamp,
		Confidence:    ev.Confidence,
		TriggerAction: ev.TriggerAction,
	}
}

func toEventDTOs(events []model.FocusEvent) []focusEventDTO {
	out := make([]focusEventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventDTO(ev))
	}
	return out
}

func toIngestResponse(res engine.IngestResult) ingestResponse {
	return ingestResponse{
		Accepted:    res.Accepted,
		Dropped:     res.Dropped,
		FocusScore:  res.Score,
		ReadingMode: string(res.Mode),
		Events:      toEventDTOs(res.Events),
	}
}

func toAnalyticsResponse(s model.AnalyticsSummary) analyticsResponse {
	sessions := make([]sessionDTO, 0, len(s.Sessions))
	for _, sess := range s.Sessions {
		sessions = append(sessions, toSessionDTO(sess))
	}
	return analyticsResponse{
		TotalSessions:     s.TotalSessions,
		AverageFocusScore: s.AverageFocusScore,
		Sessions:          sessions,
	}
}

func (g gazeSampleDTO) model() model.GazeSample {
	return model.GazeSample{
		Timestamp:  g.Timestamp,
		X:          g.X,
		Y:          g.Y,
		WordIndex:  g.WordIndex,
		LineNumber: g.LineNumber,
	}
}

func toPreferencesDTO(p model.UserPreferences) preferencesDTO {
	return preferencesDTO{
		DefaultReadingMode: string(p.DefaultReadingMode),
		BionicIntensity:    p.BionicIntensity,
		RSVPSpeed:          p.RSVPSpeed,
		BackgroundColor:    p.BackgroundColor,
		TextColor:          p.TextColor,
		FontSize:           p.FontSize,
		FontFamily:         p.FontFamily,
		FocusMaskEnabled:   p.FocusMaskEnabled,
		AutoModeSwitch:     p.AutoModeSwitch,
		EyeTrackingEnabled: p.EyeTrackingEnabled,
	}
}
