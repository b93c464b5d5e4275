package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/asana2sql/internal/logging"
	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// TruncationThreshold is the task count at which an unpaginated fetch may
// have been capped by the remote.
const TruncationThreshold = 50

// projectFields is the projection used for project metadata.
const projectFields = "id,name,archived"

// Source is the remote record source. Project metadata and task sets are
// computed once and cached for the lifetime of the Source; there is no
// invalidation, so each synchronization pass uses a new Source.
type Source struct {
	client    Client
	logger    logrus.FieldLogger
	threshold int

	projects map[string]types.Project
	tasks    map[string][]types.Record
	warnings []error
}

// NewSource wraps client. A nil logger discards output.
func NewSource(client Client, logger logrus.FieldLogger) *Source {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Source{
		client:    client,
		logger:    logger,
		threshold: TruncationThreshold,
		projects:  make(map[string]types.Project),
		tasks:     make(map[string][]types.Record),
	}
}

// ProjectMetadata returns the id, name and archived flag of projectID.
// A remote not-found is reported as *types.ProjectNotFoundError.
func (s *Source) ProjectMetadata(ctx context.Context, projectID string) (types.Project, error) {
	if p, ok := s.projects[projectID]; ok {
		return p, nil
	}

	rec, err := s.client.FetchProject(ctx, projectID, projectFields)
	if err != nil {
		return types.Project{}, translate(projectID, err)
	}

	p := types.Project{ID: rec.ID(), Name: stringAttr(rec, "name")}
	if p.ID == "" {
		p.ID = projectID
	}
	if archived, ok := rec["archived"].(bool); ok {
		p.Archived = archived
	}
	s.projects[projectID] = p
	return p, nil
}

// TaskSet returns the tasks of projectID fetched with the given attribute
// projection. With includeSubtasks, the subtasks of every top-level task
// are fetched too and appended to the same flat list. The first result is
// cached and returned for every later call.
func (s *Source) TaskSet(ctx context.Context, projectID string, projection []string, includeSubtasks bool) ([]types.Record, error) {
	if tasks, ok := s.tasks[projectID]; ok {
		return tasks, nil
	}

	fields := strings.Join(projection, ",")
	result, err := s.client.FetchTasks(ctx, projectID, fields)
	if err != nil {
		return nil, translate(projectID, err)
	}

	log := s.logger.WithField("project_id", projectID)
	if len(result) >= s.threshold {
		w := &types.TruncationWarning{ProjectID: projectID, Count: len(result), Threshold: s.threshold}
		s.warnings = append(s.warnings, w)
		log.WithField("count", len(result)).Warn(w.Error())
	}

	if includeSubtasks {
		// A subtask can also be listed under the project directly; keep
		// the first occurrence so each task is written once.
		seen := make(map[string]bool, len(result))
		for _, task := range result {
			seen[task.ID()] = true
		}
		topLevel := result
		for _, task := range topLevel {
			subtasks, err := s.client.FetchSubtasks(ctx, task.ID(), fields)
			if err != nil {
				return nil, fmt.Errorf("fetch subtasks of %s: %w", task.ID(), err)
			}
			for _, sub := range subtasks {
				if seen[sub.ID()] {
					continue
				}
				seen[sub.ID()] = true
				result = append(result, sub)
			}
		}
		log.WithField("count", len(result)-len(topLevel)).Debug("fetched subtasks")
	}

	s.tasks[projectID] = result
	log.WithField("count", len(result)).Info("fetched tasks")
	return result, nil
}

// Warnings returns the non-fatal warnings raised so far.
func (s *Source) Warnings() []error {
	return s.warnings
}

func translate(projectID string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &types.ProjectNotFoundError{ProjectID: projectID}
	}
	return err
}

func stringAttr(rec types.Record, key string) string {
	if s, ok := rec[key].(string); ok {
		return s
	}
	return ""
}
