package resolver

import (
	"nodeflow/internal/graph"
)

// ComposePrompt merges the system and user texts. With no system text the
// user text is returned verbatim.
func ComposePrompt(system, user string) string {
	if system == "" {
		return user
	}
	return "System: " + system + "\nUser: " + user
}

// Prepared is what a worker run sends once its inputs are resolved.
type Prepared struct {
	Text  string
	Media []graph.MediaRef
}

// Prepare resolves the worker slots of workerID and composes the prompt.
// It fails with ErrNoInput when there is neither text nor media to send.
func Prepare(g GraphReader, workerID string) (Prepared, error) {
	in, err := Resolve(g, workerID, WorkerSlots)
	if err != nil {
		return Prepared{}, err
	}
	p := Prepared{
		Text:  ComposePrompt(in.Text(SlotSystem), in.Text(SlotUser)),
		Media: in.Media(SlotImages),
	}
	if p.Text == "" && len(p.Media) == 0 {
		return Prepared{}, ErrNoInput
	}
	return p, nil
}
