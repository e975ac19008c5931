package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/events"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/services"
	"github.com/bigdiamond/atelier-backend/internal/testutil"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []services.EmailMessage
}

func (m *recordingMailer) Send(_ context.Context, msg services.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.To)
	}
	return out
}

type projectFixture struct {
	svc    *services.ProjectService
	bus    *events.Bus
	clock  *clock.MockClock
	mailer *recordingMailer
	events []events.Event
}

func newProjectFixture(t *testing.T) *projectFixture {
	t.Helper()
	f := &projectFixture{
		bus:    events.NewBus(),
		clock:  clock.NewMockClock(testutil.FixedTime),
		mailer: &recordingMailer{},
	}
	f.svc = services.NewProjectService(testutil.NewTestDB(t), f.bus, f.clock)
	services.NewNotificationService(f.mailer, "atelier@bigdiamond.pl", "https://bigdiamond.pl/projekt").Subscribe(f.bus)
	f.bus.Subscribe(events.TypeDesignStatusChanged, func(_ context.Context, ev events.Event) {
		f.events = append(f.events, ev)
	})
	return f
}

func (f *projectFixture) create(t *testing.T) *models.CustomProject {
	t.Helper()
	project, err := f.svc.Create(context.Background(), services.CreateProjectRequest{
		Name:        "Anna Nowak",
		Email:       "anna@example.com",
		ProjectType: "ring",
		Brief:       "Pierścionek zaręczynowy\n<b>z szafirem</b>",
		Budget:      8000,
		Materials:   []string{"platyna", " "},
	})
	require.NoError(t, err)
	return project
}

func TestCreateProject(t *testing.T) {
	f := newProjectFixture(t)
	project := f.create(t)

	assert.Equal(t, models.ProjectStatusBriefReceived, project.Status)
	assert.Equal(t, "Pierścionek zaręczynowy\nz szafirem", project.Brief)
	assert.Equal(t, models.StringArray{"platyna"}, project.Materials)
	require.Len(t, project.StatusHistory, 1)
	assert.Equal(t, testutil.FixedTime, project.StatusHistory[0].Timestamp)

	assert.ElementsMatch(t, []string{"anna@example.com", "atelier@bigdiamond.pl"}, f.mailer.recipients())
}

func TestTransitionRejectsSkippingSteps(t *testing.T) {
	f := newProjectFixture(t)
	project := f.create(t)

	_, err := f.svc.Transition(context.Background(), project.ID.String(), models.ProjectStatusInProduction, "admin")
	require.ErrorIs(t, err, services.ErrInvalidTransition)

	var transition *services.TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.ProjectStatusBriefReceived, transition.From)
	assert.Equal(t, models.ProjectStatusInProduction, transition.To)

	stored, err := f.svc.Get(context.Background(), project.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusBriefReceived, stored.Status)
	assert.Len(t, stored.StatusHistory, 1)
	assert.Empty(t, f.events)
}

func TestTransitionAppendsHistoryInOrder(t *testing.T) {
	f := newProjectFixture(t)
	project := f.create(t)
	ctx := context.Background()
	id := project.ID.String()

	result, err := f.svc.Transition(ctx, id, models.ProjectStatusConceptReady, "admin")
	require.NoError(t, err)
	require.NotNil(t, result.Event)
	assert.Len(t, result.Project.StatusHistory, 2)

	f.clock.Add(time.Minute)
	_, err = f.svc.Transition(ctx, id, models.ProjectStatusCADApproved, "admin")
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.StatusHistory, 3)
	assert.Equal(t, models.ProjectStatusConceptReady, stored.StatusHistory[1].Status)
	assert.Equal(t, models.ProjectStatusCADApproved, stored.StatusHistory[2].Status)
	assert.True(t, stored.StatusHistory[2].Timestamp.After(stored.StatusHistory[1].Timestamp))
	assert.Equal(t, "admin", stored.StatusHistory[2].User)

	require.Len(t, f.events, 2)
	payload := f.events[1].Payload.(services.ProjectEvent)
	assert.Equal(t, models.ProjectStatusConceptReady, payload.PreviousStatus)
	assert.Equal(t, models.ProjectStatusCADApproved, payload.Status)

	// Intake sends two emails, each notified status one more.
	assert.Len(t, f.mailer.recipients(), 4)
}

func TestStatusChangeWithoutNotification(t *testing.T) {
	f := newProjectFixture(t)
	project := f.create(t)
	ctx := context.Background()
	id := project.ID.String()

	_, err := f.svc.Transition(ctx, id, models.ProjectStatusConceptReady, "admin")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, id, models.ProjectStatusBriefReceived, "admin")
	require.NoError(t, err)

	assert.Len(t, f.events, 2)
	assert.Len(t, f.mailer.recipients(), 3, "returning to brief_received sends nothing")
}

func TestForceTransition(t *testing.T) {
	f := newProjectFixture(t)
	project := f.create(t)
	ctx := context.Background()
	id := project.ID.String()

	result, err := f.svc.ForceTransition(ctx, id, models.ProjectStatusReadyForPickup, "admin")
	require.NoError(t, err)
	assert.NotNil(t, result.Event)
	assert.Equal(t, models.ProjectStatusReadyForPickup, result.Project.Status)

	again, err := f.svc.ForceTransition(ctx, id, models.ProjectStatusReadyForPickup, "admin")
	require.NoError(t, err)
	assert.Nil(t, again.Event, "same status emits no event")
	assert.Len(t, again.Project.StatusHistory, 3)
	assert.Len(t, f.events, 1)

	_, err = f.svc.ForceTransition(ctx, id, models.ProjectStatus("shipped"), "admin")
	assert.ErrorIs(t, err, services.ErrInvalidStatus)
}

func TestTransitionUnknownProject(t *testing.T) {
	f := newProjectFixture(t)

	_, err := f.svc.Transition(context.Background(), "not-a-uuid", models.ProjectStatusConceptReady, "admin")
	assert.ErrorIs(t, err, services.ErrProjectNotFound)

	_, _, err = f.svc.AvailableTransitions(context.Background(), "8a5a1d0e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, services.ErrProjectNotFound)
}

func TestAvailableTransitions(t *testing.T) {
	f := newProjectFixture(t)
	project := f.create(t)

	current, next, err := f.svc.AvailableTransitions(context.Background(), project.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusBriefReceived, current)
	assert.Equal(t, []models.ProjectStatus{models.ProjectStatusConceptReady}, next)
}

func TestCommentsRequireOwnerOrAdmin(t *testing.T) {
	f := newProjectFixture(t)
	project := f.create(t)
	ctx := context.Background()
	id := project.ID.String()

	_, err := f.svc.AddComment(ctx, id, services.Viewer{Email: "someone@example.com"}, "hej")
	assert.ErrorIs(t, err, services.ErrProjectForbidden)

	comment, err := f.svc.AddComment(ctx, id, services.Viewer{Email: "ANNA@example.com"}, "Czy można dodać grawer?")
	require.NoError(t, err)
	assert.Equal(t, "Anna Nowak", comment.Author)

	reply, err := f.svc.AddComment(ctx, id, services.Viewer{Admin: true, Name: "atelier"}, "Tak")
	require.NoError(t, err)
	assert.Equal(t, "atelier", reply.Author)

	_, err = f.svc.AddComment(ctx, id, services.Viewer{Admin: true}, "<p></p>")
	assert.ErrorIs(t, err, services.ErrInvalidProjectInput)

	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored.Comments, 2)
}

func TestListProjectsByStatus(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	first := f.create(t)
	f.create(t)

	_, err := f.svc.Transition(ctx, first.ID.String(), models.ProjectStatusConceptReady, "admin")
	require.NoError(t, err)

	projects, total, err := f.svc.List(ctx, string(models.ProjectStatusConceptReady), defaultPage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, projects, 1)
	assert.Equal(t, first.ID, projects[0].ID)

	_, _, err = f.svc.List(ctx, "shipped", defaultPage())
	assert.ErrorIs(t, err, services.ErrInvalidStatus)
}

func defaultPage() utils.PaginationParams {
	return utils.NormalizePagination(utils.PaginationParams{})
}
