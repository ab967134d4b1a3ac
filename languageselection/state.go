// Package languageselection models saving a new app language: set it, reload the remote
// config, then report the change. If the config cannot be loaded, the previous
// language is restored.
//
// Each stage asks the driver for exactly one thing, and only the matching
// acknowledgment moves the flow on.
package languageselection

import (
	"github.com/amp-labs/amp-state/statemachine"
	"golang.org/x/text/language"
)

// Event is the closed set of events the flow reacts to.
type Event interface {
	edge(state State) string
}

// TappedSave is sent when the user saves Language.
type TappedSave struct {
	Language string
}

// DidSetLanguage acknowledges SetLanguage.
type DidSetLanguage struct{}

// LoadedConfig acknowledges LoadConfig.
type LoadedConfig struct{}

// FailedLoadingConfig reports that LoadConfig failed.
type FailedLoadingConfig struct{}

// ProducedOutput acknowledges ProduceOutput.
type ProducedOutput struct{}

func (e TappedSave) edge(state State) string {
	if canonical(e.Language) == state.currentLanguage && state.hasRegion {
		return edgeSaveUnchanged
	}

	return edgeSave
}

func (DidSetLanguage) edge(State) string      { return edgeDidSetLanguage }
func (LoadedConfig) edge(State) string        { return edgeLoadedConfig }
func (FailedLoadingConfig) edge(State) string { return edgeFailedLoading }
func (ProducedOutput) edge(State) string      { return edgeProducedOutput }

// LanguageChanged is the outcome of the flow.
type LanguageChanged struct {
	Language string
}

// State of the language selection flow.
type State struct {
	currentLanguage string
	hasRegion       bool
	stage           Stage
	// requested is the language being applied, kept until the output is produced.
	requested string
}

// NewState starts the flow idle with currentLanguage in use. hasRegion tells whether
// the user already picked a region, which is what makes saving the unchanged language
// skip straight to the output.
func NewState(currentLanguage string, hasRegion bool) State {
	return State{
		currentLanguage: canonical(currentLanguage),
		hasRegion:       hasRegion,
		stage:           StageIdle,
	}
}

// NewMachine returns a machine holding NewState(currentLanguage, hasRegion).
func NewMachine(
	currentLanguage string,
	hasRegion bool,
	opts ...statemachine.Option,
) (*statemachine.Machine[State, Event], error) {
	opts = append([]statemachine.Option{statemachine.WithName("language_selection")}, opts...)

	return statemachine.New(NewState(currentLanguage, hasRegion), Reduce, opts...)
}

// canonical returns the BCP 47 form of tag, or tag itself when it does not parse.
func canonical(tag string) string {
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}

	return parsed.String()
}

// Reduce advances the flow. Events that do not apply to the current stage leave the
// state unchanged.
func Reduce(state State, event Event) (State, error) {
	if event == nil {
		return state, statemachine.UnknownEvent(event)
	}

	stage, moved, err := follow(state.stage, event.edge(state))
	if err != nil || !moved {
		return state, err
	}

	next := state
	next.stage = stage

	switch ev := event.(type) {
	case TappedSave:
		next.requested = canonical(ev.Language)
	case FailedLoadingConfig:
		next.requested = ""
	case ProducedOutput:
		next.currentLanguage = next.requested
		next.requested = ""
	}

	return next, nil
}

// Stage returns the current stage.
func (s State) Stage() Stage {
	return s.stage
}

// CurrentLanguage is the language in use before the flow completes.
func (s State) CurrentLanguage() string {
	return s.currentLanguage
}

// ShowActivityPopup reports whether the flow is busy.
func (s State) ShowActivityPopup() bool {
	return s.stage != StageIdle
}

// SetLanguage returns the language the driver should apply: the requested one while
// setting, the previous one while resetting.
func (s State) SetLanguage() (string, bool) {
	switch s.stage { //nolint:exhaustive
	case StageSettingLanguage:
		return s.requested, true
	case StageResettingLanguage:
		return s.currentLanguage, true
	default:
		return "", false
	}
}

// LoadConfig reports whether the driver should load the remote config.
func (s State) LoadConfig() bool {
	return s.stage == StageLoadingConfig
}

// ProduceOutput returns the outcome the driver should deliver.
func (s State) ProduceOutput() (LanguageChanged, bool) {
	if s.stage != StageProducingOutput {
		return LanguageChanged{}, false
	}

	return LanguageChanged{Language: s.requested}, true
}
