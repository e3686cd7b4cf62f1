package searchcore

import "github.com/kailas-cloud/searchcore/internal/domain"

// Errors returned by the client. Match them with errors.Is.
var (
	ErrConfig             = domain.ErrConfig
	ErrMapping            = domain.ErrMapping
	ErrQuery              = domain.ErrQuery
	ErrBackendUnavailable = domain.ErrBackendUnavailable
	ErrRebuildInProgress  = domain.ErrRebuildInProgress
	ErrNotFound           = domain.ErrNotFound
)
