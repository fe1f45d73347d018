package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
	"crm-backend/internal/service"
	"crm-backend/internal/testutil"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordVisit_FullFlow(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageFirstMeeting))
	h.store.Customers[custID].MeetingCount = 2

	res, err := h.visits.Record(ctx, service.RecordVisitInput{
		CustomerID:   custID,
		Purpose:      "Product demo",
		Outcome:      "Interested",
		NewStage:     string(domain.StageVisitDemo),
		NextStep:     "Send proposal",
		NextStepDate: datePtr(2024, 6, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, service.VisitLoggedMessage, res.Message)
	assert.Empty(t, res.Warnings)

	require.Len(t, h.store.Visits, 1)
	v := h.store.Visits[0]
	assert.Equal(t, "Product demo", v.Purpose)
	assert.Equal(t, "Interested", v.Outcome)
	assert.Equal(t, bdmID, *v.UserID)
	assert.Equal(t, testNow, v.Timestamp)

	c, _ := h.store.Customer(custID)
	assert.Equal(t, "Customer Visit/Demo", c.Stage.String())
	assert.Equal(t, 2, c.MeetingCount)

	tasks := h.store.TasksOf(bdmID)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Send proposal", tasks[0].Description)
	assert.Equal(t, "2024-06-01", tasks[0].DueDate.Format("2006-01-02"))
	assert.Equal(t, domain.PriorityNormal, tasks[0].Priority)
	assert.False(t, tasks[0].IsCompleted)
	require.NotNil(t, tasks[0].CustomerID)
	assert.Equal(t, custID, *tasks[0].CustomerID)
}

func TestRecordVisit_CompletesOwnTask(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageNewLead))
	taskID := h.store.AddTask(domain.Task{Description: "Visit site", UserID: bdmID, Priority: domain.PriorityHigh})

	res, err := h.visits.Record(ctx, service.RecordVisitInput{CustomerID: custID, Purpose: "Follow up", TaskID: taskID})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	task, _ := h.store.Task(taskID)
	assert.True(t, task.IsCompleted)
}

func TestRecordVisit_DoesNotCompleteAnotherUsersTask(t *testing.T) {
	h := newHarness()
	custID := h.addLead(otherBDMID, domain.NewStage(domain.StageNewLead))
	taskID := h.store.AddTask(domain.Task{Description: "Visit site", UserID: bdmID, Priority: domain.PriorityHigh})

	res, err := h.visits.Record(testutil.AsUser(context.Background(), otherBDMID), service.RecordVisitInput{
		CustomerID: custID,
		Purpose:    "Follow up",
		TaskID:     taskID,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{service.StepCompleteTask}, res.Warnings)

	task, _ := h.store.Task(taskID)
	assert.False(t, task.IsCompleted)
	assert.Len(t, h.store.Visits, 1)
}

func TestRecordVisit_NextStepCreatesExactlyOneTask(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageProposal))

	_, err := h.visits.Record(ctx, service.RecordVisitInput{CustomerID: custID, NextStep: "Call back"})
	require.NoError(t, err)

	tasks := h.store.TasksOf(bdmID)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call back", tasks[0].Description)
	assert.Nil(t, tasks[0].DueDate)
	assert.Equal(t, 1, h.store.Calls(testutil.OpTaskCreate))
}

func TestRecordVisit_KeepCurrentLeavesStage(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageNegotiation))

	_, err := h.visits.Record(ctx, service.RecordVisitInput{CustomerID: custID, NewStage: domain.KeepCurrentStage})
	require.NoError(t, err)
	assert.Equal(t, 0, h.store.Calls(testutil.OpCustomerUpdateStage))
}

func TestRecordVisit_InsertFailureAbortsFollowUps(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageNewLead))
	h.store.FailOn(testutil.OpVisitCreate, errors.New("disk full"))

	_, err := h.visits.Record(ctx, service.RecordVisitInput{
		CustomerID: custID,
		NewStage:   string(domain.StageValidityCheck),
		NextStep:   "Call back",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, h.store.Calls(testutil.OpCustomerUpdateStage))
	assert.Equal(t, 0, h.store.Calls(testutil.OpTaskCreate))

	c, _ := h.store.Customer(custID)
	assert.Equal(t, "New Lead", c.Stage.String())
}

func TestRecordVisit_SideEffectFailuresAreWarnings(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageNewLead))
	taskID := h.store.AddTask(domain.Task{Description: "Old", UserID: bdmID, Priority: domain.PriorityLow})
	h.store.FailOn(testutil.OpCustomerUpdateStage, errors.New("timeout"))
	h.store.FailOn(testutil.OpTaskCreate, errors.New("timeout"))
	h.store.FailOn(testutil.OpTaskComplete, errors.New("timeout"))

	res, err := h.visits.Record(ctx, service.RecordVisitInput{
		CustomerID: custID,
		NewStage:   string(domain.StageValidityCheck),
		NextStep:   "Call back",
		TaskID:     taskID,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Visit)
	assert.Equal(t, []string{service.StepAdvanceStage, service.StepCreateNextTask, service.StepCompleteTask}, res.Warnings)

	n, err := promtest.GatherAndCount(h.metrics.Registry, "crm_workflow_step_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRecordVisit_PhotoUploadFailureKeepsVisit(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageNewLead))
	h.objects.Err = errors.New("bucket missing")

	res, err := h.visits.Record(ctx, service.RecordVisitInput{
		CustomerID: custID,
		Photo:      &service.Upload{Filename: "site.JPG", ContentType: "image/jpeg", Body: strings.NewReader("img")},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Visit.PhotoURL)
	assert.Equal(t, []string{service.StepUploadPhoto}, res.Warnings)
}

func TestRecordVisit_PhotoKey(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageNewLead))

	res, err := h.visits.Record(ctx, service.RecordVisitInput{
		CustomerID: custID,
		Photo:      &service.Upload{Filename: "site.JPG", ContentType: "image/jpeg", Body: strings.NewReader("img")},
	})
	require.NoError(t, err)
	key := "bdm-1/1716197400000.jpg"
	assert.Contains(t, h.objects.Data, key)
	require.NotNil(t, res.Visit.PhotoURL)
	assert.Equal(t, "https://cdn.example.com/"+key, *res.Visit.PhotoURL)
}

func TestRecordVisit_ResolvesPlaceName(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageNewLead))
	lat, lng := -6.2, 106.816666

	res, err := h.visits.Record(ctx, service.RecordVisitInput{CustomerID: custID, Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	require.NotNil(t, res.Visit.LocationName)
	assert.Equal(t, "Jl. Sudirman, Jakarta", *res.Visit.LocationName)

	h.visits.Places = testutil.Places{Err: domain.ErrLocationUnavailable}
	res, err = h.visits.Record(ctx, service.RecordVisitInput{CustomerID: custID, Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	assert.Equal(t, "-6.200000, 106.816666", *res.Visit.LocationName)
	assert.Equal(t, []string{service.StepResolvePlace}, res.Warnings)
}

func TestRecordVisit_Validation(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), bdmID)
	lat := 1.0

	_, err := h.visits.Record(ctx, service.RecordVisitInput{})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = h.visits.Record(ctx, service.RecordVisitInput{CustomerID: "c", Latitude: &lat})
	assert.ErrorAs(t, err, &verr)

	_, err = h.visits.Record(context.Background(), service.RecordVisitInput{CustomerID: "c"})
	var aerr *domain.AuthorizationError
	assert.ErrorAs(t, err, &aerr)
}

func TestListVisits_NarrowsForBDM(t *testing.T) {
	h := newHarness()
	mine := h.addLead(bdmID, domain.NewStage(domain.StageNewLead))
	theirs := h.addLead(otherBDMID, domain.NewStage(domain.StageNewLead))
	_, err := h.visits.Record(testutil.AsUser(context.Background(), bdmID), service.RecordVisitInput{CustomerID: mine})
	require.NoError(t, err)
	_, err = h.visits.Record(testutil.AsUser(context.Background(), otherBDMID), service.RecordVisitInput{CustomerID: theirs})
	require.NoError(t, err)

	got, err := h.visits.List(testutil.AsUser(context.Background(), bdmID), ports.VisitFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Budi", got[0].UserName)

	got, err = h.visits.List(testutil.AsUser(context.Background(), adminID), ports.VisitFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
