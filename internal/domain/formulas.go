package domain

// formulas maps each growth-phase group to its cascade. Field numbers are the
// 1-based dato_N positions of the capture form for that group.
var formulas = map[Group]Formula{
	// lost plants, remaining plants, nodes lost %, defoliation %
	GroupSoybeanVegetative: {
		Fields: 4,
		Steps: []Step{
			{Name: "stand_loss", Metric: shareOf([]int{1}, 2), Table: FamilySoybeanStandLoss, Bucketing: Floor},
			{Name: "node_loss", Metric: field(3), Table: FamilySoybeanNodeLoss, Bucketing: Floor, Compounded: true},
			{Name: "defoliation", Metric: field(4), Table: FamilySoybeanDefoliation, Bucketing: Floor, Compounded: true},
		},
	},

	// lost plants, remaining plants, original nodes, five remaining-node
	// counts, defoliation %
	GroupSoybeanEarlyReproductive: {
		Fields: 9,
		Steps: []Step{
			{Name: "stand_loss", Metric: shareOf([]int{1}, 2)},
			{Name: "node_loss", Metric: soybeanNodeLoss, Table: FamilySoybeanNodeLossReproductive, Bucketing: RoundHalfUp, Compounded: true},
			{Name: "defoliation", Metric: field(9), Table: FamilySoybeanDefoliationReproductive, Bucketing: RoundHalfUp, Compounded: true},
		},
	},

	// pods on the ground, five (open, healthy) pod pairs, defoliation %
	GroupSoybeanMidReproductive: {
		Fields: 12,
		Steps: []Step{
			{Name: "ground_pods", Metric: shareOf([]int{1}, fields(2, 11, 1)...)},
			{Name: "open_pods", Metric: fieldRatio(fields(2, 10, 2), fields(1, 11, 1))},
			{Name: "defoliation", Metric: field(12), Table: FamilySoybeanDefoliationPodFill, Bucketing: RoundHalfUp, Compounded: true, ZeroBucketIsZero: true},
		},
	},

	// pods on the ground, ten (open, healthy) pod pairs
	GroupSoybeanLateReproductive: {
		Fields: 21,
		Applicable: func(m Measurement) bool {
			return m.Sum(1, 2, 3) > 0
		},
		Steps: []Step{
			{Name: "pod_loss", Metric: shareOf(append([]int{1}, fields(2, 20, 2)...), fields(3, 21, 2)...)},
		},
	},

	// spikes lost, hung, remaining, ten (grains lost, grains total) pairs.
	// The spike-loss lookup is bucketed on the same ratio that is already
	// applied directly, so spike loss counts twice. Existing assessments
	// depend on it.
	GroupWheat: {
		Fields: 23,
		Steps: []Step{
			{Name: "spike_loss_ratio", Metric: shareOf([]int{1}, 2, 3)},
			{Name: "spike_loss", Metric: shareOf([]int{1}, 2, 3), Table: FamilyWheatSpikeLoss, Bucketing: Floor, ZeroBucketIsZero: true},
			{Name: "grain_loss", Metric: fieldRatio(fields(4, 22, 2), fields(5, 23, 2)), Compounded: true},
		},
	},

	// lost plants, unproductive plants, remaining plants, head damage %,
	// defoliation %
	GroupSunflower: {
		Fields: 5,
		Steps: []Step{
			{Name: "stand_loss", Metric: shareOf([]int{1}, 2, 3), Table: FamilySunflowerStandLoss, Bucketing: Floor, ZeroBucketIsZero: true},
			{Name: "unproductive_plants", Metric: shareOf([]int{2}, 1, 3)},
			{Name: "head_damage", Metric: field(4), Compounded: true},
			{Name: "defoliation", Metric: field(5), Table: FamilySunflowerDefoliation, Bucketing: Floor, Compounded: true, ZeroBucketIsZero: true},
		},
	},

	// lost plants, remaining plants, defoliation %
	GroupCornVegetative: {
		Fields: 3,
		Steps: []Step{
			{Name: "stand_loss", Metric: shareOf([]int{1}, 2), Table: FamilyCornStandLoss, Bucketing: Floor},
			{Name: "defoliation", Metric: field(3), Table: FamilyCornDefoliation, Bucketing: Floor, Compounded: true},
		},
	},

	// lost plants, remaining plants, kernel rows per ear, ears sampled,
	// grains lost, defoliation %
	GroupCornReproductive: {
		Fields: 6,
		Steps: []Step{
			{Name: "stand_loss", Metric: shareOf([]int{1}, 2), Table: FamilyCornStandLoss, Bucketing: Floor},
			{Name: "grain_loss", Metric: cornGrainLoss, Table: FamilyCornGrainLoss, Bucketing: Floor, Compounded: true},
			{Name: "defoliation", Metric: field(6), Table: FamilyCornDefoliation, Bucketing: Floor, Compounded: true},
		},
	},
}

func init() {
	for g, f := range formulas {
		f.Group = g
		formulas[g] = f
	}
}

// FormulaFor returns the cascade of a growth-phase group.
func FormulaFor(g Group) (Formula, bool) {
	f, ok := formulas[g]
	return f, ok
}

// FieldCount returns how many dato_N fields the capture form of a group has.
func FieldCount(g Group) int {
	return formulas[g].Fields
}

// soybeanNodeLoss compares the mean of the positive remaining-node counts
// (fields 4-8) with the original node count (field 3).
func soybeanNodeLoss(m Measurement) float64 {
	original := m.Dato(3)
	if original <= 0 {
		return 0
	}
	var sum float64
	var n int
	for _, f := range fields(4, 8, 1) {
		if v := m.Dato(f); v > 0 {
			sum += v
			n++
		}
	}
	var mean float64
	if n > 0 {
		mean = sum / float64(n)
	}
	return 100 - mean/original*100
}

// cornGrainLoss is grains lost per five-kernel unit of the sampled ears:
// grains / (rows * ears * 5).
func cornGrainLoss(m Measurement) float64 {
	den := m.Dato(3) * m.Dato(4) * 5
	if den <= 0 {
		return 0
	}
	return m.Dato(5) / den
}

// fieldRatio returns sum(num) / sum(den) * 100, or 0 when sum(den) is not
// positive.
func fieldRatio(num, den []int) Metric {
	return func(m Measurement) float64 {
		return ratio(m.Sum(num...), m.Sum(den...))
	}
}
