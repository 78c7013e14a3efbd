// Package catalog holds the front end logic of the catalog: library status,
// form diffing, library staging on projects, banner alerts and destructive
// confirmation. It talks to the server through an API.
package catalog

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"library-catalog/internal/client"
	"library-catalog/internal/models"
	"library-catalog/pkg/importer"
)

// API is the subset of the REST client the front end uses.
type API interface {
	Login(ctx context.Context, username, password string) (*models.User, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*models.Profile, error)
	ListLibraries(ctx context.Context, f client.Filter) ([]models.Library, error)
	CreateLibrary(ctx context.Context, in models.LibraryInput) (*models.Library, error)
	UpdateLibrary(ctx context.Context, changes map[string]any) (*models.Library, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error)
	UpdateProject(ctx context.Context, changes map[string]any) error
	DeleteProject(ctx context.Context, id int64) error
	ImportExcel(ctx context.Context, filename string, r io.Reader, opts client.ImportOptions) (*importer.ImportSummary, error)
}

// Service runs user actions against the API and records their outcome in
// State and Alerts.
type Service struct {
	API     API
	State   State
	Alerts  *Alerts
	Confirm Confirmer
	Logger  *zap.Logger

	now func() time.Time
}

// NewService returns a Service that asks confirm before destructive actions.
func NewService(api API, confirm Confirmer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if confirm == nil {
		confirm = Never
	}
	return &Service{
		API:     api,
		Alerts:  &Alerts{},
		Confirm: confirm,
		Logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) today() models.Date { return models.NewDate(s.now()) }

func (s *Service) fail(title, body string, err error) error {
	s.Logger.Debug("action failed", zap.String("title", title), zap.Error(err))
	return actionError(title, body, err)
}

// Login starts a session and loads the user's flags.
func (s *Service) Login(ctx context.Context, username, password string) error {
	u, err := s.API.Login(ctx, username, password)
	if err != nil {
		return s.fail(TitleLogin, BodyBadCredentials, err)
	}
	s.State = State{User: u.Username, Staff: u.IsStaff}
	if p, err := s.API.Profile(ctx); err == nil {
		s.State.ProjectPermissions = p.ProjectPermissions
	} else {
		s.Logger.Debug("profile after login", zap.Error(err))
	}
	s.Alerts.Replace(AlertSuccess, MsgLoggedIn)
	return nil
}

// Logout ends the session and clears State.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.API.Logout(ctx); err != nil {
		return err
	}
	s.State = State{}
	s.Alerts.Replace(AlertSuccess, MsgLoggedOut)
	return nil
}

// Refresh reloads State from the server's profile.
func (s *Service) Refresh(ctx context.Context) error {
	p, err := s.API.Profile(ctx)
	if err != nil {
		return err
	}
	s.State = State{User: p.Username, Staff: p.IsStaff, ProjectPermissions: p.ProjectPermissions}
	return nil
}

// ListLibraries fetches every library and the inactive ones concurrently and
// merges their status.
func (s *Service) ListLibraries(ctx context.Context) ([]LibraryRow, error) {
	var all, inactive []models.Library
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = s.API.ListLibraries(gctx, client.All)
		return err
	})
	g.Go(func() error {
		var err error
		inactive, err = s.API.ListLibraries(gctx, client.Inactive)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MergeStatus(all, inactive), nil
}

// ActiveLibraries lists the libraries that can be added to a project.
func (s *Service) ActiveLibraries(ctx context.Context) ([]models.Library, error) {
	return s.API.ListLibraries(ctx, client.Active)
}

// AddLibrary creates a library from an add form.
func (s *Service) AddLibrary(ctx context.Context, form *Form) (*models.Library, error) {
	if err := form.Validate(); err != nil {
		return nil, s.fail(TitleSaveLibrary, BodyUnableToSave, err)
	}
	p := form.Payload()
	in := models.LibraryInput{
		Description:     str(p, "description"),
		ActiveStartDate: str(p, "active_start_date"),
	}
	if end := str(p, "active_end_date"); end != "" {
		in.ActiveEndDate = &end
	}
	lib, err := s.API.CreateLibrary(ctx, in)
	if err != nil {
		return nil, s.fail(TitleSaveLibrary, BodyUnableToSave, err)
	}
	s.Alerts.Replace(AlertSuccess, MsgLibraryAdded)
	return lib, nil
}

// EditLibrary sends the form's changes to library id.
func (s *Service) EditLibrary(ctx context.Context, id int64, form *Form) error {
	changes := form.Changes(id)
	if len(changes) == 1 {
		s.Alerts.Replace(AlertWarning, MsgNoChanges)
		return ErrNothingToSave
	}
	if _, err := s.API.UpdateLibrary(ctx, changes); err != nil {
		return s.fail(TitleSaveLibrary, BodyUnableToSave, err)
	}
	s.Alerts.Replace(AlertSuccess, MsgLibrarySaved)
	return nil
}

// RetireLibrary ends a library yesterday, making it inactive from today on.
// A library starting today or later cannot end yesterday and is refused.
func (s *Service) RetireLibrary(ctx context.Context, l models.Library) error {
	end := s.today().AddDays(-1)
	if end.Before(l.ActiveStartDate) {
		return s.fail(TitleSaveLibrary, BodyEndBeforeStart, ErrNotStarted)
	}
	form := LibraryForm(&l)
	if err := form.SetAttr("active_end_date", end.String()); err != nil {
		return err
	}
	return s.EditLibrary(ctx, l.ID, form)
}

// ListProjects fetches projects with their relations staged.
func (s *Service) ListProjects(ctx context.Context) ([]ProjectRow, error) {
	projects, err := s.API.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]ProjectRow, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, ProjectRow{Project: p, Staged: StageProject(p)})
	}
	return rows, nil
}

// NewProjectForm returns an add form starting today.
func (s *Service) NewProjectForm() *Form { return ProjectForm(nil, s.today()) }

// AddProject creates a project from an add form and its staged libraries.
func (s *Service) AddProject(ctx context.Context, form *Form, staged *Staging) (*models.Project, error) {
	if err := form.Validate(); err != nil {
		return nil, s.fail(TitleSaveProject, BodyUnableToSave, err)
	}
	p := form.Payload()
	in := models.ProjectInput{
		Name:            str(p, "name"),
		ActiveStartDate: str(p, "active_start_date"),
		ClientName:      str(p, "client_name"),
		Description:     str(p, "description"),
		GitURL:          str(p, "git_url"),
		TestingURL:      str(p, "testing_url"),
		ProductionURL:   str(p, "production_url"),
	}
	if end := str(p, "active_end_date"); end != "" {
		in.ActiveEndDate = &end
	}
	if staged != nil {
		in.Libraries = staged.Submission()
	}
	project, err := s.API.CreateProject(ctx, in)
	if err != nil {
		return nil, s.fail(TitleSaveProject, BodyUnableToSave, err)
	}
	s.Alerts.Replace(AlertSuccess, MsgProjectAdded)
	return project, nil
}

// EditProject sends the form's changes and the staged library entries to
// project id.
func (s *Service) EditProject(ctx context.Context, id int64, form *Form, staged *Staging) error {
	changes := form.Changes(id)
	pending := staged != nil && staged.Pending()
	if len(changes) == 1 && !pending {
		s.Alerts.Replace(AlertWarning, MsgNoChanges)
		return ErrNothingToSave
	}
	if staged != nil {
		changes["libraries"] = staged.Submission()
	}
	if err := s.API.UpdateProject(ctx, changes); err != nil {
		return s.fail(TitleSaveProject, BodyUnableToSave, err)
	}
	s.Alerts.Replace(AlertSuccess, MsgProjectSaved)
	return nil
}

// DeleteProject removes project id after the user consents.
func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	ok, err := s.Confirm.Confirm(DeletePrompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	if err := s.API.DeleteProject(ctx, id); err != nil {
		return s.fail(TitleSaveProject, BodyUnableToDelete, err)
	}
	s.Alerts.Replace(AlertWarning, MsgProjectDeleted)
	return nil
}

// Import uploads a workbook. A failed import still returns its summary.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader, opts client.ImportOptions) (*importer.ImportSummary, error) {
	sum, err := s.API.ImportExcel(ctx, filename, r, opts)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		s.Alerts.Replace(AlertDanger, apiErr.Detail)
	}
	return sum, err
}

func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
