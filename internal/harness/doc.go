// Package harness runs commit scripts against a kernel registry and checks
// their expectations.
//
// Every run uses a deterministic millisecond clock for commits that do not
// name a timestamp, so the same script always produces the same marker
// trace. RunWithGolden compares that trace against a golden file:
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden/*.golden.
package harness
