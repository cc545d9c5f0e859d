package checkpoint

// Config controls checkpoint submission.
type Config struct {
	// Threshold is the number of unproven tokens that triggers an
	// automatic checkpoint.
	Threshold uint64

	// MinProvenTokens pads the first checkpoint of a job up to this
	// amount when set. Zero disables padding and every checkpoint
	// submits exactly the accumulated delta.
	MinProvenTokens uint64

	// ModelPath is the model the proofs commit to.
	ModelPath string

	// Contract is the checkpoint contract address transactions are
	// sent to.
	Contract string
}

// DefaultConfig returns the default checkpoint configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:       100,
		MinProvenTokens: 0,
		ModelPath:       "./models/model.gguf",
	}
}
