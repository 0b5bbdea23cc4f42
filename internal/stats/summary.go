package stats

import (
	"fmt"

	"apomixis/internal/nn"
)

// Summary condenses a per-generation best-fitness series into headline
// numbers.
type Summary struct {
	Generations    int     `json:"generations"`
	FirstFitness   float64 `json:"first_fitness"`
	FinalFitness   float64 `json:"final_fitness"`
	BestFitness    float64 `json:"best_fitness"`
	BestGeneration int     `json:"best_generation"`
	MeanFitness    float64 `json:"mean_fitness"`
	StdFitness     float64 `json:"std_fitness"`
	Improvement    float64 `json:"improvement"`
}

// Summarize reduces a fitness history to a Summary. BestGeneration is
// 1-based and names the first generation that reached BestFitness.
func Summarize(history []float64) (Summary, error) {
	if len(history) == 0 {
		return Summary{}, fmt.Errorf("history must not be empty")
	}

	summary := Summary{
		Generations:    len(history),
		FirstFitness:   history[0],
		FinalFitness:   history[len(history)-1],
		BestFitness:    history[0],
		BestGeneration: 1,
	}
	for i, value := range history[1:] {
		if value > summary.BestFitness {
			summary.BestFitness = value
			summary.BestGeneration = i + 2
		}
	}

	mean, err := nn.Avg(history)
	if err != nil {
		return Summary{}, err
	}
	std, err := nn.Std(history)
	if err != nil {
		return Summary{}, err
	}
	summary.MeanFitness = mean
	summary.StdFitness = std
	summary.Improvement = summary.FinalFitness - summary.FirstFitness
	return summary, nil
}
