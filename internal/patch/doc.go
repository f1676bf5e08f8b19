// Package patch defines the three page-shaped patch variants, their
// validators, and the Draft that accumulates validated patches between
// commits.
//
// Raw patches arrive as decoded JSON or YAML maps. Validate turns a raw map
// into exactly one of Page1Patch, Page2Patch or Page3Patch, clamping
// out-of-range numbers and rejecting unknown keys and out-of-enum values with
// a *ValidationError. A rejected patch never reaches the Draft.
package patch
