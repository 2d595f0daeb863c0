// Package adaptive derives charging set-points from the pack state and an
// RUL estimate. Adjust is a pure function: it reads its inputs, never
// mutates them and returns identical results for identical inputs.
package adaptive
