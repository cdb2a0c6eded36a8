// Package domain models normalized weather data and the winter-service risk
// signals derived from it.
//
// # Raw samples
//
// Weather providers deliver partial, duck-typed rows: any field of a
// [RawSample] may be absent, and absent is distinct from zero. Optional
// fields are therefore pointers, with defaulting applied only at
// normalization time:
//
//	precipitation, wind speed, humidity  →  default 0 when absent
//	temperature                          →  required; absence fails with
//	                                        ErrInsufficientData because every
//	                                        risk signal depends on it
//
// # Normalization rules
//
// [BuildHourly] keeps only samples strictly after the query time, truncates
// to 24 entries, then keeps every third entry. The down-sampling is a
// deliberate display-compactness choice inherited from the website and must
// be preserved for compatibility; do not "fix" it to return denser output.
//
// [BuildDaily] groups samples by their provider-local calendar date and
// includes only days strictly after today, so the current partial day never
// produces a misleading min/max. The representative condition per day is
// chosen by a fixed priority scan:
//
//	thunderstorm > snow > rain ≈ sleet ≈ hail > fog > cloudy > partly-cloudy > clear
//
// preferring samples from the 08:00–18:00 window when available and falling
// back to the most frequent condition when only unrecognized codes remain.
// Unrecognized provider codes pass through unmodified; [ConditionLabel]
// degrades gracefully to the raw code.
//
// # Snow accumulation heuristics
//
// Precipitation converts to snow depth with temperature-dependent factors
// (10 at ≤0 °C, 7 otherwise for daily totals; 10/8/7 bands for the snowfall
// window scan). These are pragmatic constants carried over from production,
// not derived physics. Treat them as tunable parameters.
//
// # Risk signals
//
// [ComputeIceRisk], [PredictSnowfall], and [WinterServiceRequired] are pure
// functions over normalized data. They are always evaluated against the
// forecast being published, never against a stale one, so the advisory text
// and the conditions it describes cannot drift apart.
package domain
