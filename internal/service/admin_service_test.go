package service_test

import (
	"context"
	"errors"
	"testing"

	"crm-backend/internal/domain"
	"crm-backend/internal/service"
	"crm-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doomedID = "bdm-doomed"

func seedDoomedUser(h *harness) (customers []string, visitID string) {
	h.store.AddProfile(doomedID, "Joko", domain.RoleBDM)
	h.registry.Add(domain.Identity{ID: doomedID, Email: "joko@example.com"})
	for i := 0; i < 2; i++ {
		customers = append(customers, h.addLead(doomedID, domain.NewStage(domain.StageNewLead)))
	}
	for i := 0; i < 3; i++ {
		h.store.AddTask(domain.Task{Description: "t", UserID: doomedID, Priority: domain.PriorityNormal})
	}
	res, err := h.visits.Record(testutil.AsUser(context.Background(), doomedID), service.RecordVisitInput{CustomerID: customers[0]})
	if err != nil {
		panic(err)
	}
	return customers, res.Visit.ID
}

// editedBy seeds a customer owned by someone else that userID edited last.
func editedBy(h *harness, userID string) string {
	owner := otherBDMID
	return h.store.AddCustomer(domain.Customer{
		Name:         "CV Sumber Rejeki",
		Type:         domain.CustomerDealer,
		Stage:        domain.ActiveStage(),
		AssignedTo:   &owner,
		CreatedBy:    &owner,
		LastEditedBy: &userID,
	})
}

func TestDeleteUser_Cascade(t *testing.T) {
	h := newHarness()
	customers, visitID := seedDoomedUser(h)
	edited := editedBy(h, doomedID)

	report, err := h.admin.DeleteUser(testutil.AsUser(context.Background(), superAdminID), doomedID)
	require.NoError(t, err)
	assert.Empty(t, report.Warnings())

	for _, id := range customers {
		c, ok := h.store.Customer(id)
		require.True(t, ok)
		assert.Nil(t, c.AssignedTo)
		assert.Nil(t, c.CreatedBy)
	}
	c, ok := h.store.Customer(edited)
	require.True(t, ok)
	assert.Nil(t, c.LastEditedBy)
	require.NotNil(t, c.CreatedBy)
	assert.Equal(t, otherBDMID, *c.CreatedBy)
	assert.Empty(t, h.store.TasksOf(doomedID))
	require.Len(t, h.store.Visits, 1)
	assert.Equal(t, visitID, h.store.Visits[0].ID)
	assert.Nil(t, h.store.Visits[0].UserID)
	assert.NotContains(t, h.store.Profiles, doomedID)
	assert.NotContains(t, h.registry.Identities, doomedID)
}

func TestDeleteUser_RequiresSuperAdmin(t *testing.T) {
	h := newHarness()
	seedDoomedUser(h)

	_, err := h.admin.DeleteUser(testutil.AsUser(context.Background(), adminID), doomedID)
	var aerr *domain.AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, 0, h.store.Calls(testutil.OpCustomerUnassignAll))
	assert.Contains(t, h.registry.Identities, doomedID)
}

func TestDeleteUser_UnassignFailureIsFatal(t *testing.T) {
	h := newHarness()
	seedDoomedUser(h)
	h.store.FailOn(testutil.OpCustomerUnassignAll, errors.New("locked"))

	_, err := h.admin.DeleteUser(testutil.AsUser(context.Background(), superAdminID), doomedID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unassign customers")
	assert.Equal(t, 0, h.store.Calls(testutil.OpTaskDeleteByUser))
	assert.Contains(t, h.registry.Identities, doomedID)
}

func TestDeleteUser_BestEffortStepsContinue(t *testing.T) {
	h := newHarness()
	seedDoomedUser(h)
	h.store.FailOn(testutil.OpTaskDeleteByUser, errors.New("timeout"))
	h.store.FailOn(testutil.OpProfileDelete, errors.New("timeout"))

	report, err := h.admin.DeleteUser(testutil.AsUser(context.Background(), superAdminID), doomedID)
	require.NoError(t, err)
	assert.Equal(t, []string{service.StepDeleteTasks, service.StepDeleteProfile}, report.Warnings())
	assert.NotContains(t, h.registry.Identities, doomedID)
}

func TestDeleteUser_ProfileFailureAfterDetachFailureAborts(t *testing.T) {
	h := newHarness()
	seedDoomedUser(h)
	h.store.FailOn(testutil.OpVisitDetach, errors.New("timeout"))

	report, err := h.admin.DeleteUser(testutil.AsUser(context.Background(), superAdminID), doomedID)
	require.ErrorIs(t, err, domain.ErrAssociatedVisits)
	assert.Equal(t, "cannot delete user because they have associated visits that cannot be unlinked", err.Error())
	assert.True(t, report.Failed(service.StepDetachVisits))
	assert.Contains(t, h.store.Profiles, doomedID)
	assert.Contains(t, h.registry.Identities, doomedID)
}

func TestDeleteUser_DetachFailureAloneContinues(t *testing.T) {
	h := newHarness()
	seedDoomedUser(h)
	h.store.Visits = nil
	h.store.FailOn(testutil.OpVisitDetach, errors.New("timeout"))

	report, err := h.admin.DeleteUser(testutil.AsUser(context.Background(), superAdminID), doomedID)
	require.NoError(t, err)
	assert.Equal(t, []string{service.StepDetachVisits}, report.Warnings())
	assert.NotContains(t, h.store.Profiles, doomedID)
	assert.NotContains(t, h.registry.Identities, doomedID)
}

func TestDeleteUser_AuthorDetachFailureKeepsProfile(t *testing.T) {
	h := newHarness()
	seedDoomedUser(h)
	h.store.FailOn(testutil.OpCustomerDetachAuthor, errors.New("timeout"))

	report, err := h.admin.DeleteUser(testutil.AsUser(context.Background(), superAdminID), doomedID)
	require.NoError(t, err)
	assert.Equal(t, []string{service.StepDetachAuthor, service.StepDeleteProfile}, report.Warnings())
	assert.Contains(t, h.store.Profiles, doomedID)
	assert.NotContains(t, h.registry.Identities, doomedID)
}

func TestDeleteUser_IdentityFailureIsFatal(t *testing.T) {
	h := newHarness()
	seedDoomedUser(h)
	h.registry.Fail["delete"] = errors.New("503")

	_, err := h.admin.DeleteUser(testutil.AsUser(context.Background(), superAdminID), doomedID)
	var eerr *domain.ExternalServiceError
	assert.ErrorAs(t, err, &eerr)
}

func TestListUsers_MergePrecedence(t *testing.T) {
	h := newHarness()
	h.registry.Add(domain.Identity{ID: bdmID, Email: "budi@example.com", Metadata: domain.IdentityMetadata{FullName: "Old Name", Role: domain.RoleAdmin}})
	h.registry.Add(domain.Identity{ID: "orphan", Email: "o@example.com", Metadata: domain.IdentityMetadata{FullName: "Orphan", Role: domain.RoleBDM}})
	h.registry.Add(domain.Identity{ID: "bare", Email: "b@example.com", Banned: true})

	users, err := h.admin.ListUsers(testutil.AsUser(context.Background(), adminID))
	require.NoError(t, err)
	byID := map[string]domain.UserSummary{}
	for _, u := range users {
		byID[u.ID] = u
	}
	require.Len(t, byID, 3)
	assert.Equal(t, "Budi", byID[bdmID].FullName)
	assert.Equal(t, "bdm", byID[bdmID].Role)
	assert.Equal(t, "Orphan", byID["orphan"].FullName)
	assert.Equal(t, "bdm", byID["orphan"].Role)
	assert.Equal(t, "", byID["bare"].FullName)
	assert.Equal(t, "user", byID["bare"].Role)
	assert.True(t, byID["bare"].Banned)

	_, err = h.admin.ListUsers(testutil.AsUser(context.Background(), bdmID))
	var aerr *domain.AuthorizationError
	assert.ErrorAs(t, err, &aerr)
}

func TestCreateUser(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), adminID)

	id, err := h.admin.CreateUser(ctx, service.CreateUserInput{Email: "new@example.com", Password: "secret1", FullName: "Nina", Role: domain.RoleBDM})
	require.NoError(t, err)
	p, ok := h.store.Profiles[id.ID]
	require.True(t, ok)
	assert.Equal(t, "Nina", p.FullName)
	assert.Equal(t, domain.RoleBDM, p.Role)
	assert.Equal(t, domain.RoleBDM, h.registry.Identities[id.ID].Metadata.Role)

	_, err = h.admin.CreateUser(ctx, service.CreateUserInput{Email: "x@example.com"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "All fields are required", verr.Error())
}

func TestCreateUser_ProfileFailureIsWarning(t *testing.T) {
	h := newHarness()
	h.store.FailOn(testutil.OpProfileInsert, errors.New("rls"))

	id, err := h.admin.CreateUser(testutil.AsUser(context.Background(), superAdminID), service.CreateUserInput{
		Email: "new@example.com", Password: "secret1", FullName: "Nina", Role: domain.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Contains(t, h.registry.Identities, id.ID)
	assert.NotContains(t, h.store.Profiles, id.ID)
}

func TestUpdateRole_ProfileIsSourceOfTruth(t *testing.T) {
	h := newHarness()
	h.registry.Add(domain.Identity{ID: bdmID})
	h.registry.Fail["metadata"] = errors.New("timeout")

	err := h.admin.UpdateRole(testutil.AsUser(context.Background(), superAdminID), bdmID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, h.store.Profiles[bdmID].Role)
	assert.Empty(t, h.registry.Identities[bdmID].Metadata.Role)

	_, err = h.gate.Authorize(testutil.AsUser(context.Background(), bdmID), service.ActionManageAssignments)
	assert.NoError(t, err)
}

func TestUpdateRole_ProfileFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.registry.Add(domain.Identity{ID: bdmID})
	h.store.FailOn(testutil.OpProfileUpdateRole, errors.New("timeout"))

	err := h.admin.UpdateRole(testutil.AsUser(context.Background(), superAdminID), bdmID, domain.RoleAdmin)
	require.Error(t, err)
	assert.Empty(t, h.registry.Identities[bdmID].Metadata.Role)
}

func TestSetBannedAndResetPassword(t *testing.T) {
	h := newHarness()
	h.registry.Add(domain.Identity{ID: bdmID})
	super := testutil.AsUser(context.Background(), superAdminID)

	require.NoError(t, h.admin.SetBanned(super, bdmID, true))
	assert.True(t, h.registry.Identities[bdmID].Banned)

	require.NoError(t, h.admin.ResetPassword(super, bdmID, "new-password"))
	assert.Equal(t, "new-password", h.registry.Passwords[bdmID])

	err := h.admin.ResetPassword(testutil.AsUser(context.Background(), adminID), bdmID, "another-one")
	var aerr *domain.AuthorizationError
	assert.ErrorAs(t, err, &aerr)

	err = h.admin.ResetPassword(super, bdmID, "123")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAssignCustomer(t *testing.T) {
	h := newHarness()
	ctx := testutil.AsUser(context.Background(), adminID)
	custID := h.addLead(bdmID, domain.NewStage(domain.StageNewLead))

	p, err := h.admin.AssignCustomer(ctx, custID, otherBDMID)
	require.NoError(t, err)
	assert.Equal(t, "Sari", p.FullName)
	c, _ := h.store.Customer(custID)
	assert.Equal(t, otherBDMID, *c.AssignedTo)

	_, err = h.admin.AssignCustomer(ctx, custID, "nobody")
	assert.EqualError(t, err, "BDM not found")

	_, err = h.admin.AssignCustomer(ctx, custID, superAdminID)
	assert.EqualError(t, err, "Selected user is not a BDM")

	require.NoError(t, h.admin.UnassignCustomer(ctx, custID))
	c, _ = h.store.Customer(custID)
	assert.Nil(t, c.AssignedTo)

	rows, err := h.admin.ListAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].AssigneeName)

	err = h.admin.UnassignCustomer(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdminService_ListVisitsOfCustomerAfterReassign(t *testing.T) {
	h := newHarness()
	custID := h.addLead(bdmID, domain.NewStage(domain.StageNewLead))
	_, err := h.visits.Record(testutil.AsUser(context.Background(), bdmID), service.RecordVisitInput{CustomerID: custID})
	require.NoError(t, err)
	_, err = h.admin.AssignCustomer(testutil.AsUser(context.Background(), adminID), custID, otherBDMID)
	require.NoError(t, err)

	got, err := h.customers.ListVisits(testutil.AsUser(context.Background(), otherBDMID), custID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = h.customers.ListVisits(testutil.AsUser(context.Background(), bdmID), custID)
	var aerr *domain.AuthorizationError
	assert.ErrorAs(t, err, &aerr)
}
