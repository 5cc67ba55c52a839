package confdb

// TierSpec is the fixed sizing/pricing table for a Tier (spec §4.C).
type TierSpec struct {
	InstanceType    string
	CPUCores        int
	MemoryMb        int
	StorageMb       int
	MaxConnections  int
	PricePerHourUsd float64
	EnclaveMemoryMb int
	EnclaveCpus     int
}

var tierSpecs = map[Tier]TierSpec{
	Small: {
		InstanceType: "small", CPUCores: 4, MemoryMb: 8 * 1024, StorageMb: 100 * 1024,
		MaxConnections: 100, PricePerHourUsd: 0.17, EnclaveMemoryMb: 4 * 1024, EnclaveCpus: 2,
	},
	Medium: {
		InstanceType: "medium", CPUCores: 4, MemoryMb: 16 * 1024, StorageMb: 250 * 1024,
		MaxConnections: 200, PricePerHourUsd: 0.192, EnclaveMemoryMb: 8 * 1024, EnclaveCpus: 2,
	},
	Large: {
		InstanceType: "large", CPUCores: 4, MemoryMb: 32 * 1024, StorageMb: 500 * 1024,
		MaxConnections: 400, PricePerHourUsd: 0.252, EnclaveMemoryMb: 16 * 1024, EnclaveCpus: 2,
	},
	XLarge: {
		InstanceType: "xlarge", CPUCores: 8, MemoryMb: 64 * 1024, StorageMb: 1024 * 1024,
		MaxConnections: 800, PricePerHourUsd: 0.504, EnclaveMemoryMb: 32 * 1024, EnclaveCpus: 4,
	},
}

// tierSpec returns the spec for t and whether t is recognized.
func tierSpec(t Tier) (TierSpec, bool) {
	s, ok := tierSpecs[t]
	return s, ok
}
