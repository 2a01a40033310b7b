package protocol

import "time"

// AudioFrame represents PCM audio data streamed from edge devices.
type AudioFrame struct {
	SessionID  string `json:"session_id"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

// Transcript represents recognition output broadcast on the bus.
type Transcript struct {
	SessionID  string    `json:"session_id"`
	EntryID    string    `json:"entry_id,omitempty"`
	Text       string    `json:"text"`
	Partial    bool      `json:"partial"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Match represents a pattern hit extracted from recognized speech.
type Match struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// StateChange announces a session lifecycle transition.
type StateChange struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectAudioFramePrefix  = "hark.audio.frame"
	SubjectTranscriptPartial = "hark.transcript.partial"
	SubjectTranscriptFinal   = "hark.transcript.final"
	SubjectMatch             = "hark.session.match"
	SubjectSessionState      = "hark.session.state"
)
