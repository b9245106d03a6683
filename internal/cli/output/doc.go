// Package output renders pixelflut-cli results.
//
// Results are printed as aligned text for people, or as JSON or YAML
// for scripts. Long pixel writes report progress through ProgressBar.
package output
