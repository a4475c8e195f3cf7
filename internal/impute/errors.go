package impute

import (
	"errors"

	"github.com/eutectik/lodimpute/internal/coda"
)

// Sentinel errors for the recoverable failure modes of the engines. The
// numeric-domain sentinels live in package coda and are re-exported here so
// callers can test every imputation failure with errors.Is against a single
// package.
var (
	// ErrDomain reports a non-positive value where a logarithm is required.
	ErrDomain = coda.ErrDomain

	// ErrSingular reports a non-invertible covariance in a conditioning step.
	ErrSingular = coda.ErrSingular

	// ErrInsufficientData reports too few observed values for a column to
	// support the requested method.
	ErrInsufficientData = errors.New("insufficient observed data")

	// ErrInsufficientNeighbors reports that a spatial query found fewer
	// qualifying neighbors than the configured minimum.
	ErrInsufficientNeighbors = errors.New("insufficient spatial neighbors")
)
