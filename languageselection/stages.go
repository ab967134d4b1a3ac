package languageselection

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Stage is the step the flow is currently waiting on.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageSettingLanguage   Stage = "settingLanguage"
	StageLoadingConfig     Stage = "loadingConfig"
	StageResettingLanguage Stage = "resettingLanguage"
	StageProducingOutput   Stage = "producingOutput"
)

// Names of the edges in the stage graph.
const (
	edgeSave           = "save"
	edgeSaveUnchanged  = "saveUnchanged"
	edgeDidSetLanguage = "didSetLanguage"
	edgeLoadedConfig   = "loadedConfig"
	edgeFailedLoading  = "failedLoadingConfig"
	edgeProducedOutput = "producedOutput"
)

// stageEdges is the complete stage graph. An event with no edge out of the current stage
// is an acknowledgment for a request that is no longer pending.
var stageEdges = fsm.Events{ //nolint:gochecknoglobals
	{Name: edgeSave, Src: []string{string(StageIdle)}, Dst: string(StageSettingLanguage)},
	{Name: edgeSaveUnchanged, Src: []string{string(StageIdle)}, Dst: string(StageProducingOutput)},
	{Name: edgeDidSetLanguage, Src: []string{string(StageSettingLanguage)}, Dst: string(StageLoadingConfig)},
	{Name: edgeDidSetLanguage, Src: []string{string(StageResettingLanguage)}, Dst: string(StageIdle)},
	{Name: edgeLoadedConfig, Src: []string{string(StageLoadingConfig)}, Dst: string(StageProducingOutput)},
	{
		Name: edgeFailedLoading,
		Src:  []string{string(StageSettingLanguage), string(StageLoadingConfig)},
		Dst:  string(StageResettingLanguage),
	},
	{Name: edgeProducedOutput, Src: []string{string(StageProducingOutput)}, Dst: string(StageIdle)},
}

// follow returns the stage reached by taking edge from stage, and false when there is
// no such edge.
func follow(stage Stage, edge string) (Stage, bool, error) {
	walker := fsm.NewFSM(string(stage), stageEdges, nil)

	if !walker.Can(edge) {
		return stage, false, nil
	}

	if err := walker.Event(context.Background(), edge); err != nil {
		return stage, false, fmt.Errorf("following %s from %s: %w", edge, stage, err)
	}

	return Stage(walker.Current()), true, nil
}

// StageGraph renders the stage graph in Graphviz DOT format.
func StageGraph() string {
	return fsm.Visualize(fsm.NewFSM(string(StageIdle), stageEdges, nil))
}
