// Package scan walks the organizational hierarchy of the directory
// (collections, projects and their security groups) and flattens every
// reachable user identity into one scan result consumed by the author
// mapping builder.
package scan

import (
	"context"
	"fmt"

	"authormap/internal/directory"
	"authormap/internal/logging"
)

// ProjectFailure records one project whose identity resolution failed and was
// skipped.
type ProjectFailure struct {
	Project directory.ProjectRef
	Err     error
}

// Result is the outcome of one full hierarchy scan: every resolved user
// identity in encounter order (duplicates included), plus the projects that
// were skipped.
type Result struct {
	Identities []directory.Identity
	Failures   []ProjectFailure

	Collections int
	Projects    int
}

// Walker drives one full top-down scan of the hierarchy. Traversal is
// strictly sequential; every directory call blocks the walk until it returns.
type Walker struct {
	client   directory.Client
	resolver *Resolver
	log      *logging.Logger
}

// NewWalker creates a walker over the given directory client.
func NewWalker(client directory.Client, log *logging.Logger) *Walker {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Walker{
		client:   client,
		resolver: NewResolver(client),
		log:      log,
	}
}

// Scan enumerates all collections and their projects, resolving each
// project's identities. A failure while enumerating collections or projects
// is fatal and aborts the scan. A failure while resolving one project is
// caught at the project boundary: it is logged with the project name,
// recorded in the result, and the scan continues with the next project.
func (w *Walker) Scan(ctx context.Context) (*Result, error) {
	collections, err := w.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate collections: %w", err)
	}

	result := &Result{Collections: len(collections)}

	for _, collection := range collections {
		projects, err := w.client.ListProjects(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate projects in collection %s: %w", collection.Name, err)
		}

		w.log.Info("scanning collection %s (%d projects)", collection.Name, len(projects))
		result.Projects += len(projects)

		for _, project := range projects {
			identities, err := w.resolver.ResolveProject(ctx, project)
			if err != nil {
				w.log.ProjectWarn(project.String(), "project resolution failed, skipping", err)
				result.Failures = append(result.Failures, ProjectFailure{Project: project, Err: err})
				continue
			}

			result.Identities = append(result.Identities, identities...)
		}
	}

	return result, nil
}
