package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnknownStage is returned when a stage code cannot be routed for a crop.
var ErrUnknownStage = errors.New("unknown phenological stage")

// Group identifies a growth-phase group. Samples in the same group share a field
// layout and a damage formula.
type Group string

const (
	GroupSoybeanVegetative        Group = "soybean_vegetative"
	GroupSoybeanEarlyReproductive Group = "soybean_early_reproductive"
	GroupSoybeanMidReproductive   Group = "soybean_mid_reproductive"
	GroupSoybeanLateReproductive  Group = "soybean_late_reproductive"
	GroupWheat                    Group = "wheat"
	GroupSunflower                Group = "sunflower"
	GroupCornVegetative           Group = "corn_vegetative"
	GroupCornReproductive         Group = "corn_reproductive"
)

// Stage is a phenological stage as selected on the capture form.
type Stage struct {
	Crop  Crop   `json:"crop"`
	Code  int    `json:"code"`
	Label string `json:"label"`
	Group Group  `json:"group"`
}

// stageCatalog is the routing table: codes are consecutive from the first
// argument of each run.
var stageCatalog = map[Crop][]Stage{
	Soybean: joinRuns(
		stageRun(Soybean, 1, GroupSoybeanVegetative, "v1-v5", "v6-v8", "v9-vn"),
		stageRun(Soybean, 4, GroupSoybeanEarlyReproductive, "r1-r2", "r2.5", "r3", "r3.5"),
		stageRun(Soybean, 8, GroupSoybeanMidReproductive, "r4", "r4.5", "r5", "r6", "r6.5"),
		stageRun(Soybean, 13, GroupSoybeanLateReproductive, "r8"),
	),
	Wheat: stageRun(Wheat, 1, GroupWheat,
		"Espigamiento (Z.50/59)",
		"Floración (Z.60/69)",
		"Lechoso (Z.70/79)",
		"Pastoso blando (Z.80/84)",
		"Pastoso duro (Z.85/89)",
		"Próx. a mudurez (Z.90/99)",
	),
	Sunflower: stageRun(Sunflower, 1, GroupSunflower,
		"V1-V11",
		"V12-Vn",
		"R1 (estrella)",
		"R2 (botón a 0,5 - 2 cm)",
		"R3 (botón a + de 2 cm)",
		"R4 (apertura inflorescencia)",
		"R5 (inicio floración)",
		"R6 (fin floración)",
		"R7 (envés capítulo inicio amarilleo)",
		"R8 (envés capítulo amarillo)",
		"R9 (brácteas amarillo/marrón)",
	),
	Corn: joinRuns(
		stageRun(Corn, 1, GroupCornVegetative, "V1-V4", "V5", "V6", "V7", "V8", "V13-VT"),
		stageRun(Corn, 7, GroupCornReproductive, "R1", "R2", "R3", "R4", "R5", "R6"),
	),
}

// defaultStageCodes holds the code substituted for unmapped codes. Corn has no
// entry: an unmapped corn code is unroutable.
var defaultStageCodes = map[Crop]int{
	Soybean:   3,
	Wheat:     1,
	Sunflower: 1,
}

type stageKey struct {
	crop Crop
	code int
}

var stageIndex = indexStages(stageCatalog)

// stageCodeRe mirrors integer parsing of picker values: leading space, an
// optional sign and a digit run; anything after the digits is ignored.
var stageCodeRe = regexp.MustCompile(`^\s*[+-]?\d+`)

// StageRouter resolves stage codes. The zero value falls back to the crop
// default for unmapped codes; Strict rejects them with ErrUnknownStage.
type StageRouter struct {
	Strict bool
}

// Route resolves a stage code for a crop. The bool result reports whether the
// crop default was substituted for an unmapped code.
func (r StageRouter) Route(crop Crop, code string) (Stage, bool, error) {
	if n, ok := parseStageCode(code); ok {
		if st, found := stageIndex[stageKey{crop: crop, code: n}]; found {
			return st, false, nil
		}
	}

	if r.Strict {
		return Stage{}, false, fmt.Errorf("%w: %s code %q", ErrUnknownStage, crop, code)
	}
	def, ok := defaultStageCodes[crop]
	if !ok {
		return Stage{}, false, fmt.Errorf("%w: %s code %q has no default", ErrUnknownStage, crop, code)
	}
	return stageIndex[stageKey{crop: crop, code: def}], true, nil
}

// Stages returns the stage catalog for a crop in code order.
func Stages(crop Crop) []Stage {
	stages := stageCatalog[crop]
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// GroupStages returns the stages of one group in code order.
func GroupStages(g Group) []Stage {
	var out []Stage
	for _, crop := range Crops() {
		for _, st := range stageCatalog[crop] {
			if st.Group == g {
				out = append(out, st)
			}
		}
	}
	return out
}

func parseStageCode(code string) (int, bool) {
	m := stageCodeRe.FindString(code)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(m))
	if err != nil {
		return 0, false
	}
	return n, true
}

func stageRun(crop Crop, firstCode int, group Group, labels ...string) []Stage {
	stages := make([]Stage, len(labels))
	for i, label := range labels {
		stages[i] = Stage{Crop: crop, Code: firstCode + i, Label: label, Group: group}
	}
	return stages
}

func joinRuns(runs ...[]Stage) []Stage {
	var out []Stage
	for _, run := range runs {
		out = append(out, run...)
	}
	return out
}

func indexStages(catalog map[Crop][]Stage) map[stageKey]Stage {
	idx := make(map[stageKey]Stage)
	for crop, stages := range catalog {
		for _, st := range stages {
			idx[stageKey{crop: crop, code: st.Code}] = st
		}
	}
	return idx
}
