package domain

// Recompute re-assesses samples after the stage selection changes. Only open
// samples (not assigned to a lot) whose group matches the new stage's group
// are touched; the rest are returned unchanged. It returns the updated slice
// and the number of samples re-assessed. An unroutable stage changes nothing.
func (e *Engine) Recompute(samples []FieldSample, stageCode, crop string) ([]FieldSample, int) {
	out := make([]FieldSample, len(samples))
	copy(out, samples)

	c := ParseCrop(crop)
	stage, _, err := e.router.Route(c, stageCode)
	if err != nil {
		e.logger.Warn("recompute skipped, stage not routable",
			"crop", c,
			"stage_code", stageCode,
			"error", err,
		)
		return out, 0
	}

	var n int
	for i, s := range out {
		if !s.Open() || s.SampleType != string(stage.Group) {
			continue
		}
		s.Crop = c
		s.StageCode = stageCode
		out[i] = AssessSample(e, s)
		n++
	}
	return out, n
}
