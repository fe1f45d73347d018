package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/geo"
	"crm-backend/internal/observability"
	"crm-backend/internal/ports"
	"crm-backend/internal/storage"

	"go.uber.org/zap"
)

const (
	StepUploadPhoto    = "upload_photo"
	StepResolvePlace   = "resolve_place"
	StepInsertVisit    = "insert_visit"
	StepAdvanceStage   = "advance_stage"
	StepCreateNextTask = "create_next_task"
	StepCompleteTask   = "complete_source_task"

	VisitLoggedMessage = "Visit logged successfully"
)

var errTaskNotOwned = errors.New("task not found among the caller's tasks")

// Upload is a file received with a form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type RecordVisitInput struct {
	CustomerID   string
	Purpose      string
	Outcome      string
	Notes        string
	Latitude     *float64
	Longitude    *float64
	LocationName string
	Photo        *Upload
	NewStage     string
	NextStep     string
	NextStepDate *time.Time
	TaskID       string
}

type RecordVisitResult struct {
	Visit    *domain.Visit
	Message  string
	Warnings []string
}

// VisitService records visits and their follow-up effects.
type VisitService struct {
	Visits   ports.VisitStore
	Tasks    ports.TaskStore
	Pipeline PipelineService
	Photos   ports.ObjectStore
	Places   ports.PlaceResolver
	Gate     AccessGate
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Now      func() time.Time
}

// Record inserts the visit and then applies its follow-ups. Only the
// insert can fail the call; the other steps are logged when they fail and
// reported as warnings.
func (s VisitService) Record(ctx context.Context, in RecordVisitInput) (*RecordVisitResult, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	if in.CustomerID == "" {
		return nil, domain.Required("customer_id")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, &domain.ValidationError{Field: "location", Message: "latitude and longitude must be sent together"}
	}

	now := s.now()
	visit := domain.Visit{
		CustomerID:  in.CustomerID,
		UserID:      &user.ID,
		Purpose:     in.Purpose,
		Outcome:     in.Outcome,
		Notes:       in.Notes,
		LocationLat: in.Latitude,
		LocationLng: in.Longitude,
		Timestamp:   now,
	}
	if name := strings.TrimSpace(in.LocationName); name != "" {
		visit.LocationName = &name
	}

	var steps []Step
	if in.Photo != nil && s.Photos != nil {
		steps = append(steps, Step{Name: StepUploadPhoto, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			url, err := s.Photos.Put(ctx, storage.PhotoKey(user.ID, in.Photo.Filename, now), in.Photo.ContentType, in.Photo.Body, in.Photo.Size)
			if err != nil {
				return err
			}
			visit.PhotoURL = &url
			return nil
		}})
	}
	if in.Latitude != nil && visit.LocationName == nil {
		steps = append(steps, Step{Name: StepResolvePlace, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			name, err := s.resolvePlace(ctx, *in.Latitude, *in.Longitude)
			visit.LocationName = &name
			return err
		}})
	}

	var saved *domain.Visit
	steps = append(steps, Step{Name: StepInsertVisit, Policy: Fatal, Run: func(ctx context.Context, _ StepReport) error {
		v, err := s.Visits.Create(ctx, visit)
		saved = v
		return err
	}})

	if stage := strings.TrimSpace(in.NewStage); stage != "" && stage != domain.KeepCurrentStage {
		steps = append(steps, Step{Name: StepAdvanceStage, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			_, err := s.Pipeline.Advance(ctx, in.CustomerID, stage)
			return err
		}})
	}
	if next := strings.TrimSpace(in.NextStep); next != "" {
		steps = append(steps, Step{Name: StepCreateNextTask, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			customerID := in.CustomerID
			_, err := s.Tasks.Create(ctx, domain.Task{
				Description: next,
				DueDate:     in.NextStepDate,
				Priority:    domain.PriorityNormal,
				IsCompleted: false,
				UserID:      user.ID,
				CustomerID:  &customerID,
			})
			return err
		}})
	}
	if taskID := strings.TrimSpace(in.TaskID); taskID != "" {
		steps = append(steps, Step{Name: StepCompleteTask, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			done, err := s.Tasks.CompleteForUser(ctx, taskID, user.ID)
			if err != nil {
				return err
			}
			if !done {
				return errTaskNotOwned
			}
			return nil
		}})
	}

	report, err := stepRunner{Workflow: "record_visit", Logger: s.Logger, Metrics: s.Metrics}.run(ctx, steps)
	if err != nil {
		return nil, err
	}
	return &RecordVisitResult{Visit: saved, Message: VisitLoggedMessage, Warnings: report.Warnings()}, nil
}

// ResolvePlace looks up a place name for the visit form. On failure it
// still returns the coordinate name so the form can be submitted.
func (s VisitService) ResolvePlace(ctx context.Context, lat, lng float64) (string, error) {
	return s.resolvePlace(ctx, lat, lng)
}

func (s VisitService) resolvePlace(ctx context.Context, lat, lng float64) (string, error) {
	if s.Places == nil {
		return geo.CoordinatesName(lat, lng), nil
	}
	name, err := s.Places.Resolve(ctx, lat, lng)
	if err != nil {
		return geo.CoordinatesName(lat, lng), err
	}
	return name, nil
}

// List returns the visit audit. Callers without the view-all permission
// only see their own visits.
func (s VisitService) List(ctx context.Context, f ports.VisitFilter) ([]domain.VisitEntry, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !s.Gate.Allowed(ctx, ActionViewAllRecords) {
		f.UserID = user.ID
	}
	return s.Visits.List(ctx, f)
}

func (s VisitService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
