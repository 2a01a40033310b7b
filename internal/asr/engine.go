package asr

// Kind identifies a native engine notification.
type Kind int

const (
	KindAudioStart Kind = iota
	KindAudioEnd
	KindSoundStart
	KindSoundEnd
	KindSpeechStart
	KindSpeechEnd
	KindRecognitionStart
	KindRecognitionEnd
	KindResult
	KindNoMatch
	KindError
)

var kindNames = map[Kind]string{
	KindAudioStart:       "audio_start",
	KindAudioEnd:         "audio_end",
	KindSoundStart:       "sound_start",
	KindSoundEnd:         "sound_end",
	KindSpeechStart:      "speech_start",
	KindSpeechEnd:        "speech_end",
	KindRecognitionStart: "recognition_start",
	KindRecognitionEnd:   "recognition_end",
	KindResult:           "result",
	KindNoMatch:          "no_match",
	KindError:            "error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Alternative is one recognition hypothesis for a result.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Result is a single entry in a result event's result list.
type Result struct {
	Final        bool
	Alternatives []Alternative
}

// Event is a typed engine notification. Results and Index are populated
// for KindResult; Err for KindError.
type Event struct {
	Kind    Kind
	Index   int
	Results []Result
	Err     error
}

// Params are the engine-level knobs read at engine start time.
type Params struct {
	Continuous      bool
	InterimResults  bool
	Language        string
	MaxAlternatives uint
	Grammar         string
}

// Handler receives engine notifications. Backends may invoke it from any
// goroutine; implementations must not block.
type Handler func(Event)

// Engine is the recognition engine capability consumed by the session
// controller. One engine instance serves one controller for its lifetime.
type Engine interface {
	// Configure sets the parameters the next Start will use.
	Configure(Params)
	// SetHandler installs the notification sink. Must be called before Start.
	SetHandler(Handler)
	// Start begins a recognition session. The engine confirms through a
	// recognition_start notification.
	Start() error
	// Stop ends the session gracefully, flushing any pending final result
	// before the recognition_end notification.
	Stop()
	// Abort ends the session immediately, discarding in-flight results.
	Abort()
}
