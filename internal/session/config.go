package session

import (
	"regexp"

	"github.com/harklabs/hark-core/internal/asr"
)

// Observers are the optional pass-through callbacks for native engine
// notifications. Nil slots are no-ops. Result and no-match observers
// receive the engine event untouched; they always fire after the
// controller's own state has been updated.
type Observers struct {
	OnAudioStart       func()
	OnAudioEnd         func()
	OnSoundStart       func()
	OnSoundEnd         func()
	OnSpeechStart      func()
	OnSpeechEnd        func()
	OnRecognitionStart func()
	OnRecognitionEnd   func()
	OnResult           func(asr.Event)
	OnNoMatch          func(asr.Event)
	OnError            func(error)
}

// Config is the active session configuration. Exactly one is in effect at
// a time; changes after initialization take effect on the next engine
// (re)start.
type Config struct {
	Continuous      bool
	Grammar         string
	InterimResults  bool
	Language        string
	MaxAlternatives uint
	Pattern         *regexp.Regexp
	StartOnInit     bool
	Observers       Observers
}

var defaultPattern = regexp.MustCompile(`(?i)\bhey hark\b`)

// Defaults is the fixed default set user overrides are merged onto.
func Defaults() Config {
	return Config{
		Continuous:      true,
		Grammar:         "#JSGF V1.0;",
		InterimResults:  true,
		Language:        "en-US",
		MaxAlternatives: 1,
		Pattern:         defaultPattern,
		StartOnInit:     true,
	}
}

// Overrides is a partial configuration; nil fields retain previous values.
type Overrides struct {
	Continuous      *bool
	Grammar         *string
	InterimResults  *bool
	Language        *string
	MaxAlternatives *uint
	Pattern         *regexp.Regexp
	StartOnInit     *bool
	Observers       *Observers
}

func (c Config) merge(ov Overrides) Config {
	if ov.Continuous != nil {
		c.Continuous = *ov.Continuous
	}
	if ov.Grammar != nil {
		c.Grammar = *ov.Grammar
	}
	if ov.InterimResults != nil {
		c.InterimResults = *ov.InterimResults
	}
	if ov.Language != nil {
		c.Language = *ov.Language
	}
	if ov.MaxAlternatives != nil {
		c.MaxAlternatives = *ov.MaxAlternatives
	}
	if ov.Pattern != nil {
		c.Pattern = ov.Pattern
	}
	if ov.StartOnInit != nil {
		c.StartOnInit = *ov.StartOnInit
	}
	if ov.Observers != nil {
		c.Observers = *ov.Observers
	}
	return c
}

func (c Config) engineParams() asr.Params {
	return asr.Params{
		Continuous:      c.Continuous,
		InterimResults:  c.InterimResults,
		Language:        c.Language,
		MaxAlternatives: c.MaxAlternatives,
		Grammar:         c.Grammar,
	}
}
