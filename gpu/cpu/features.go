package cpu

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// Features lists the SIMD extensions the host reports.
func Features() []string {
	var features []string
	add := func(ok bool, name string) {
		if ok {
			features = append(features, name)
		}
	}

	add(cpu.X86.HasSSE41 || cpu.X86.HasSSE42, "SSE4")
	add(cpu.X86.HasAVX, "AVX")
	add(cpu.X86.HasAVX2, "AVX2")
	add(cpu.X86.HasFMA, "FMA")
	add(cpu.X86.HasAVX512F, "AVX512F")
	add(cpu.ARM64.HasASIMD, "NEON")
	add(cpu.ARM64.HasSVE, "SVE")
	return features
}

// CPUInfo returns a string describing available CPU features
func CPUInfo() string {
	features := Features()
	if len(features) == 0 {
		return "scalar"
	}
	return strings.Join(features, " ")
}
