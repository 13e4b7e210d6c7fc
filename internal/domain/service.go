package domain

import "context"

// CookieSettingKey is the settings key under which the most recently
// submitted cookie payload is remembered.
const CookieSettingKey = "instagram_cookies"

// JobService orchestrates job operations.
type JobService struct {
	repo       JobRepository
	settings   SettingStore
	controller JobController
}

// NewJobService creates a new JobService.
func NewJobService(repo JobRepository, settings SettingStore, controller JobController) *JobService {
	return &JobService{repo: repo, settings: settings, controller: controller}
}

// Create validates the submitted cookies, persists a pending job and starts
// its background execution. The cookie payload is remembered in settings on
// every attempt, valid or not, so the UI can prefill it next time.
func (s *JobService) Create(ctx context.Context, cookieJSON string, speed int, target TargetType) (*Job, error) {
	if err := s.settings.SetSetting(ctx, CookieSettingKey, cookieJSON); err != nil {
		return nil, err
	}

	if _, err := ParseCookies(cookieJSON); err != nil {
		return nil, err
	}

	if speed == 0 {
		speed = DefaultSpeed
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return nil, ErrInvalidSpeed
	}
	if target == "" {
		target = TargetLike
	}

	job, err := s.repo.Create(ctx, target, speed)
	if err != nil {
		return nil, err
	}

	s.controller.Start(job, cookieJSON)
	return job, nil
}

// Get retrieves a job by id.
func (s *JobService) Get(ctx context.Context, id int64) (*Job, error) {
	return s.repo.Get(ctx, id)
}

// Stop signals the job's execution to terminate and optimistically records
// the stopped status. The engine's own resolution at shutdown is
// authoritative; terminal jobs are returned unchanged.
func (s *JobService) Stop(ctx context.Context, id int64) (*Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.controller.Stop(id)

	if job.Status.Terminal() {
		return job, nil
	}
	status := StatusStopped
	return s.repo.Update(ctx, id, JobUpdate{Status: &status})
}

// CookieSetting returns the last-submitted cookie payload, or "" if unset.
func (s *JobService) CookieSetting(ctx context.Context) (string, error) {
	return s.settings.GetSetting(ctx, CookieSettingKey)
}

// ClearCookieSetting forgets the remembered cookie payload.
func (s *JobService) ClearCookieSetting(ctx context.Context) error {
	return s.settings.SetSetting(ctx, CookieSettingKey, "")
}
