package checkpointer

// nStep implements checkpointing every N iterations
type nStep struct {
	interval int
	object   Serializable // Object to save

	// filename returns the name of the file to save the object in at
	// some iteration. To save each checkpoint to a separate file with
	// the iteration as a suffix (e.g. full_0.gob, full_10.gob, ...),
	// use IterationFilename.
	filename func(iteration int) string
}

// NewNStep returns a checkpointer that checkpoints every n iterations.
func NewNStep(n int, object Serializable,
	filename func(iteration int) string) Checkpointer {
	if n <= 0 {
		panic("newnstep: interval must be positive")
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the Checkpointer's tracked object if the iteration
// is a multiple of the checkpointing interval
func (n *nStep) Checkpoint(iteration int) error {
	if iteration%n.interval == 0 {
		return Save(n.filename(iteration), n.object)
	}
	return nil
}
