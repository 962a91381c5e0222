package types

// Classification is the outcome of classifying one attachment
type Classification struct {
	Kind       FileKind `json:"kind"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	// Decisive is false when no signal fired and the kind came from a default
	Decisive bool `json:"decisive"`
}
