// Package compute sizes the worker pools used by the numeric kernels.
package compute

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Workers returns how many goroutines numeric kernels may run at once: the
// physical core count when the CPU reports it, otherwise GOMAXPROCS.
func Workers() int {
	n := runtime.GOMAXPROCS(0)
	if cores := cpuid.CPU.PhysicalCores; cores > 0 && cores < n {
		return cores
	}
	return max(n, 1)
}

// Describe returns the CPU brand and the features relevant to dense math.
func Describe() (brand string, features []string) {
	brand = cpuid.CPU.BrandName
	for _, f := range []cpuid.FeatureID{cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F} {
		if cpuid.CPU.Supports(f) {
			features = append(features, f.String())
		}
	}
	return brand, features
}
