package expression

// Adjustment is the per-frame offset applied to the baseline score.
type Adjustment int

// Adjustments, from widest smile to deepest frown.
const (
	AdjustBeaming     Adjustment = 15
	AdjustHappy       Adjustment = 10
	AdjustSlightSmile Adjustment = 5
	AdjustNone        Adjustment = 0
	AdjustSlightFrown Adjustment = -5
	AdjustFrown       Adjustment = -10
	AdjustBigFrown    Adjustment = -15
	AdjustGrimace     Adjustment = -20
)

// Classify maps features to an adjustment. The branch is chosen by the sign of
// LipCurve and the first matching rule in that branch wins.
func Classify(f Features) Adjustment {
	if f.LipCurve > 0 {
		switch {
		case f.LipCurve > 0.4 && f.MouthRatio > 2.0:
			return AdjustBeaming
		case f.LipCurve > 0.25 && f.MouthRatio > 1.7:
			return AdjustHappy
		case f.LipCurve > 0.1:
			return AdjustSlightSmile
		}
		return AdjustNone
	}

	switch {
	case f.LipCurve < -0.2 && (f.MouthRatio < 1.3 || f.LipThickness < 0.3):
		return AdjustGrimace
	case f.LipCurve < -0.15 && f.MouthRatio < 1.5:
		return AdjustBigFrown
	case f.LipCurve < -0.1:
		return AdjustFrown
	case f.LipCurve < -0.05:
		return AdjustSlightFrown
	}
	return AdjustNone
}
