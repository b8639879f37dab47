// Package domain estimates crop yield damage from manual field-sample counts.
//
// # Data Source
//
// Field samples are captured by agronomists on a mobile form, one form layout per
// crop and growth phase. The capture app publishes each saved sample as flat JSON
// to the Kafka source topic. Sample fields arrive as "dato_1".."dato_N" strings
// typed by hand, so they may use a comma or a dot as decimal separator.
//
// # Crops and Stages
//
// Crop identifiers follow the capture app: "soja", "trigo", "maiz", "girasol".
// Matching ignores case, surrounding space and accents ("Maíz" is maiz). Unknown
// crops are treated as soybean.
//
// Stage codes are the picker values of the capture form (positive integers sent
// as strings). Each (crop, code) resolves to a stage label, which keys the lookup
// tables, and a group, which selects the formula:
//
//	soja:    1-3 vegetative | 4-7 R1-R3.5 | 8-12 R4-R6.5 | 13 R8
//	trigo:   1-6 (Z.50 heading to Z.99 maturity), one group
//	girasol: 1-11 (V1-V11 to R9), one group
//	maiz:    1-6 vegetative | 7-12 reproductive
//
// Codes outside the table fall back to the crop default label (soybean v9-vn,
// wheat heading, sunflower V1-V11) unless strict routing is enabled. Corn has no
// default; an unmapped corn code is unroutable and estimates as 0.
//
// # Field Layouts
//
//	soybean vegetative (4):  lost, remaining, % nodes lost, % defoliation
//	soybean R1-R3.5 (9):     lost, remaining, original nodes, 5 remaining-node counts, % defoliation
//	soybean R4-R6.5 (12):    pods on ground, 5 x (open pods, healthy pods), % defoliation
//	soybean R8 (21):         grains on ground, 10 x (in open pods, in healthy pods)
//	wheat (23):              spikes lost, hung, remaining, 10 x (grains lost, grains total)
//	sunflower (5):           lost, unproductive, remaining, % head damage, % defoliation
//	corn vegetative (3):     lost, remaining, % defoliation
//	corn reproductive (6):   lost, remaining, kernel rows, ears, kernels lost, % defoliation
//
// "lost" and "remaining" are plant counts over the sampled distance D.
//
// # Cascading Damage
//
// Every formula is an ordered list of factors. Each factor yields a gross damage
// percentage, either straight from a ratio or from a lookup table indexed by an
// integer bucket. Direct factors add their gross value; compounded factors add
// gross x remaining / 100, where remaining is 100 minus everything accumulated so
// far. The total is rounded to one decimal and clamped to [0, 100].
//
// Soybean R8 is the one exception to the numeric contract: when the first three
// fields sum to zero or less the result is NotApplicable rather than 0.
//
// # Lookup Tables
//
// Tables are embedded YAML under tabledata/, one file per crop. A bucket that is
// negative or past the end of its row resolves to 0.
package domain
