package scape

// RecordedStep is one step of a recorded episode.
type RecordedStep struct {
	Action      int
	Observation []float64
	Reward      float64
	Done        bool
}

// Episode is a completed or truncated rollout captured by a Recorder.
type Episode struct {
	Steps  []RecordedStep
	Length int
	Reward float64
}

// Recorder wraps an Environment, passing every call through unchanged while
// capturing the steps of each episode. A finished episode is handed to the
// sink when the environment reports done; a truncated one is handed over on
// the next Reset or on Close. When render is set and the inner environment
// implements Renderer, each step is also rendered.
type Recorder struct {
	inner   Environment
	render  bool
	sink    func(Episode)
	current Episode
}

func NewRecorder(inner Environment, render bool, sink func(Episode)) *Recorder {
	return &Recorder{inner: inner, render: render, sink: sink}
}

func (r *Recorder) Reset() ([]float64, error) {
	r.flush()
	return r.inner.Reset()
}

func (r *Recorder) Step(action int) (Transition, error) {
	transition, err := r.inner.Step(action)
	if err != nil {
		return transition, err
	}
	observation := append([]float64(nil), transition.Observation...)
	r.current.Steps = append(r.current.Steps, RecordedStep{
		Action:      action,
		Observation: observation,
		Reward:      transition.Reward,
		Done:        transition.Done,
	})
	r.current.Length++
	r.current.Reward += transition.Reward
	if r.render {
		if renderer, ok := r.inner.(Renderer); ok {
			if err := renderer.Render(); err != nil {
				return Transition{}, err
			}
		}
	}
	if transition.Done {
		r.flush()
	}
	return transition, nil
}

func (r *Recorder) Close() error {
	r.flush()
	return r.inner.Close()
}

func (r *Recorder) flush() {
	if r.sink != nil && len(r.current.Steps) > 0 {
		r.sink(r.current)
	}
	r.current = Episode{}
}
