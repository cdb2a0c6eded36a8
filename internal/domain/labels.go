package domain

// conditionLabels maps normalized condition codes to the German display
// strings used by the website. Lookup is graceful: unknown codes fall back to
// the raw code so new provider codes degrade visibly instead of failing.
var conditionLabels = map[string]string{
	ConditionClear:        "Klar",
	ConditionPartlyCloudy: "Teilweise bewölkt",
	ConditionCloudy:       "Bewölkt",
	ConditionFog:          "Nebel",
	ConditionRain:         "Regen",
	ConditionSleet:        "Schneeregen",
	ConditionHail:         "Hagel",
	ConditionSnow:         "Schnee",
	ConditionThunderstorm: "Gewitter",
}

// ConditionLabel returns the localized label for a condition code, or the
// code itself when no label is known.
func ConditionLabel(code string) string {
	if label, ok := conditionLabels[code]; ok {
		return label
	}
	return code
}
