package numerics

// DirectionOption is the per-row optional Direction label.
type DirectionOption = Option[Direction]

// DirectionSeries is a time-indexed column of optional Direction labels.
type DirectionSeries []DirectionOption

// Label maps a scalar series to {up, down, neutral} by threshold tau: value
// > tau -> up, value < -tau -> down, else neutral (spec §4.1). Rows where
// the input is undefined remain undefined.
func Label(series Series, tau float64) DirectionSeries {
	out := make(DirectionSeries, len(series))
	for i, v := range series {
		if !v.Ok {
			continue
		}
		switch {
		case v.Value > tau:
			out[i] = Some(DirectionUp)
		case v.Value < -tau:
			out[i] = Some(DirectionDown)
		default:
			out[i] = Some(DirectionNeutral)
		}
	}
	return out
}

// AgreementSeries is a time-indexed column of optional Agreement labels.
type AgreementSeries []Option[Agreement]

// DirectionAgreement derives Direction_Agreement per row: all_up iff every
// one of the three directions is up, all_down iff every one is down, else
// mixed. A row is undefined if any of the three inputs is undefined.
func DirectionAgreement(upper, middle, lower DirectionSeries) AgreementSeries {
	n := len(upper)
	out := make(AgreementSeries, n)
	for i := 0; i < n; i++ {
		u, m, l := upper[i], middle[i], lower[i]
		if !u.Ok || !m.Ok || !l.Ok {
			continue
		}
		switch {
		case u.Value == DirectionUp && m.Value == DirectionUp && l.Value == DirectionUp:
			out[i] = Some(AgreementAllUp)
		case u.Value == DirectionDown && m.Value == DirectionDown && l.Value == DirectionDown:
			out[i] = Some(AgreementAllDown)
		default:
			out[i] = Some(AgreementMixed)
		}
	}
	return out
}
