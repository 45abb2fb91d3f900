package hardware

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/cwhuang/segscribe/pkg/logger"
)

// Accelerator identifies the compute device available for inference.
type Accelerator string

const (
	AcceleratorNone         Accelerator = "none"
	AcceleratorGPU          Accelerator = "gpu"
	AcceleratorAppleSilicon Accelerator = "apple-silicon"
)

// Precision is the numeric precision the backend should run with.
type Precision string

const (
	PrecisionFP16 Precision = "fp16"
	PrecisionFP32 Precision = "fp32"
	PrecisionInt8 Precision = "int8"
)

// Profile describes the machine the transcription run executes on.
// Computed once at startup and treated as immutable afterwards.
type Profile struct {
	TotalMemoryGB       float64
	AvailableMemoryGB   float64
	MemoryPercent       float64
	Accelerator         Accelerator
	AcceleratorMemoryGB float64
	Description         string
}

// Parameters are the run settings derived from a Profile.
type Parameters struct {
	SegmentSeconds   int
	StrideSeconds    int
	BatchSize        int
	Precision        Precision
	MaxVolumeBoostDB float64
}

// Detect probes system memory and accelerator presence. Detection never
// fails: inconclusive probes fall back to a CPU profile with fp32 defaults.
func Detect() *Profile {
	log := logger.WithComponent("hardware")

	profile := &Profile{
		Accelerator: AcceleratorNone,
		Description: fmt.Sprintf("%s CPU", runtime.GOARCH),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		profile.TotalMemoryGB = float64(vm.Total) / (1 << 30)
		profile.AvailableMemoryGB = float64(vm.Available) / (1 << 30)
		profile.MemoryPercent = vm.UsedPercent
	} else {
		log.Warn().Err(err).Msg("Memory probe failed, assuming 8 GB")
		profile.TotalMemoryGB = 8
		profile.AvailableMemoryGB = 4
	}

	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		profile.Accelerator = AcceleratorAppleSilicon
		profile.AcceleratorMemoryGB = profile.TotalMemoryGB
		profile.Description = "Apple Silicon (arm64)"
	} else if gpuMem, ok := probeNvidiaMemory(); ok {
		profile.Accelerator = AcceleratorGPU
		profile.AcceleratorMemoryGB = gpuMem
		profile.Description = fmt.Sprintf("%s + NVIDIA GPU (%.1f GB)", runtime.GOARCH, gpuMem)
	}

	log.Info().
		Str("description", profile.Description).
		Float64("memory_gb", profile.TotalMemoryGB).
		Float64("available_memory_gb", profile.AvailableMemoryGB).
		Str("accelerator", string(profile.Accelerator)).
		Msg("Hardware detection completed")

	return profile
}

// probeNvidiaMemory queries nvidia-smi for total device memory in GB.
// Any failure means no usable GPU.
func probeNvidiaMemory() (float64, bool) {
	out, err := exec.Command("nvidia-smi",
		"--query-gpu=memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, false
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	mib, err := strconv.ParseFloat(line, 64)
	if err != nil || mib <= 0 {
		return 0, false
	}
	return mib / 1024, true
}

// DeriveParameters maps a hardware profile to run parameters. Pure function;
// callers must treat the result as immutable for the life of the process.
func DeriveParameters(p *Profile) Parameters {
	params := Parameters{
		BatchSize: 1,
		Precision: PrecisionFP32,
	}

	switch {
	case p.AvailableMemoryGB >= 16:
		params.SegmentSeconds = 120
		params.BatchSize = 2
	case p.AvailableMemoryGB >= 8:
		params.SegmentSeconds = 90
	default:
		params.SegmentSeconds = 60
	}

	params.StrideSeconds = clampInt(params.SegmentSeconds/20, 5, 15)

	if p.Accelerator == AcceleratorAppleSilicon {
		params.Precision = PrecisionFP16
	} else if p.Accelerator == AcceleratorGPU && p.AvailableMemoryGB >= 8 {
		params.Precision = PrecisionFP16
	}

	params.MaxVolumeBoostDB = clampFloat(5+(p.AvailableMemoryGB-4), 5, 15)

	return params
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
