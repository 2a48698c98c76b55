package feedback

import "errors"

// ErrNoImprovement indicates threshold optimization found no candidate set
// strictly better than the current one on held-out data. The caller's
// thresholds are left unchanged.
var ErrNoImprovement = errors.New("no threshold improvement found")

// ErrNoEvaluationData indicates there is not enough overlapping evidence
// and correction history to evaluate threshold candidates
var ErrNoEvaluationData = errors.New("insufficient evaluation data")
