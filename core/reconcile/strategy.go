package reconcile

import "fmt"

// Complexity thresholds over the summed estimated cost.
const (
	complexityLowBelow    = 100
	complexityMediumBelow = 500
	complexityHighBelow   = 2000
)

// Strategy thresholds over the operation count.
const (
	incrementalBelow = 10
	batchBelow       = 100
)

// reorderAPICallWeight reflects that one reorder issues several move calls.
const reorderAPICallWeight = 3

// classify computes plan statistics and picks an execution strategy.
func classify(ops []Operation) (Stats, Strategy) {
	stats := Stats{TotalOperations: len(ops)}
	for _, op := range ops {
		stats.EstimatedTime += op.EstimatedCost
		if op.Type == OpReorder {
			stats.APICalls += reorderAPICallWeight
		} else {
			stats.APICalls++
		}
	}
	stats.Complexity = complexityOf(stats.EstimatedTime)
	return stats, selectStrategy(stats)
}

// complexityOf buckets a summed cost.
func complexityOf(cost int) Complexity {
	switch {
	case cost < complexityLowBelow:
		return ComplexityLow
	case cost < complexityMediumBelow:
		return ComplexityMedium
	case cost < complexityHighBelow:
		return ComplexityHigh
	default:
		return ComplexityExtreme
	}
}

func selectStrategy(stats Stats) Strategy {
	count := stats.TotalOperations
	extreme := stats.Complexity == ComplexityExtreme

	switch {
	case count < incrementalBelow && !extreme:
		return Strategy{
			Type:   StrategyIncremental,
			Reason: fmt.Sprintf("%d operations with %s complexity can be applied one at a time", count, stats.Complexity),
			Recommendations: []string{
				"Operations run sequentially in dependency order",
				"Progress is reported after every operation",
			},
		}
	case count < batchBelow && !extreme:
		return Strategy{
			Type:   StrategyBatch,
			Reason: fmt.Sprintf("%d operations with %s complexity benefit from concurrent batches", count, stats.Complexity),
			Recommendations: []string{
				"Operations are grouped by type and priority and run in bounded concurrent chunks",
				"Progress is reported once per chunk",
			},
		}
	default:
		return Strategy{
			Type:   StrategyRebuild,
			Reason: fmt.Sprintf("%d operations with %s complexity are too large to apply safely in place", count, stats.Complexity),
			Recommendations: []string{
				"Back up the current tree before making changes",
				"Tear down and recreate the tree with rollback capability",
				"Or split the change into several smaller reconciliations",
			},
		}
	}
}
