package spectral

import "errors"

var (
	// ErrInvalidTopology is returned by NewGraph for malformed or
	// disconnected topologies. Construction fails as a whole: no partial
	// graph is ever observable.
	ErrInvalidTopology = errors.New("spectral: invalid topology")

	// ErrIllConditionedGraph is returned by MixingMatrix when the requested
	// Laplacian step size exceeds the stability bound 1/lambda_max(L).
	ErrIllConditionedGraph = errors.New("spectral: ill-conditioned graph")

	// ErrEigenFailed is returned when the symmetric eigendecomposition does
	// not converge.
	ErrEigenFailed = errors.New("spectral: eigendecomposition failed")
)
