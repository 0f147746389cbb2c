// Package domain models daily barangay heat-risk data.
//
// # Data Source
//
// Observations come from two backend endpoints: a heat endpoint returning one
// temperature per barangay (a validated heat index when available, raw air
// temperature otherwise) and a facility endpoint returning a non-negative
// facility count per barangay. The fetch adapter converts counts to the
// facility-distance proxy before anything else sees them.
//
// # Facility Distance
//
// facility_distance = 1 / (1 + count)
//
//	0 facilities  → 1.00
//	4 facilities  → 0.20
//	99 facilities → 0.01
//
// Fewer nearby facilities yield a higher value, so the proxy rises with risk.
// The transform is defined once in [FacilityDistance]; the feature builder and
// the CSV contract both depend on its exact shape.
//
// # Risk Levels
//
// Risk levels follow the PAGASA-style five-tier convention: an ordinal 1–5
// where 1 is the lowest weighted severity and 5 the highest. Levels are
// assigned per cluster, so every barangay in a cluster shares a level. The
// severity score ordering clusters is the dot product of per-cluster mean
// features with [SeverityWeights] (temperature 0.6, facility 0.4).
//
// # Missing Values
//
// Missing or unparseable temperature and facility values are carried as NaN
// through feature engineering and imputed with the global column mean before
// scaling. Rows missing a barangay id or date are invalid and abort the run.
package domain
