package session

import (
	"context"
	"io"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Wizard steps. Info collection gates progression; the plan and confirmation
// steps carry no required input.
const (
	StepBusinessInfo = 1
	StepPlan         = 2
	StepConfirm      = 3

	wizardSteps = 3
)

// requiredProfileFields gate advancing past the business info step.
var requiredProfileFields = []string{"company_name", "owner_name", "email", "phone"}

// Progress is the transient onboarding wizard state. Nothing here is
// persisted server-side until Submit; abandoning the wizard discards it.
// Asset uploads run independently of step progression.
type Progress struct {
	uploader Uploader
	logger   Logger

	mu        sync.Mutex
	step      int
	fields    map[string]string
	assetURLs map[AssetKind]string
	lastErr   error
}

// NewProgress starts a wizard on the business info step.
func NewProgress(uploader Uploader) *Progress {
	return &Progress{
		uploader:  uploader,
		logger:    defLogger{},
		step:      StepBusinessInfo,
		fields:    map[string]string{},
		assetURLs: map[AssetKind]string{},
	}
}

func (p *Progress) WithLogger(logger Logger) *Progress {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Step returns the current wizard step, 1-based.
func (p *Progress) Step() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.step
}

// SetField records a form value.
func (p *Progress) SetField(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fields[name] = value
}

// Field reads a form value.
func (p *Progress) Field(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fields[name]
}

// ValidationError returns the error recorded by the last blocked advance,
// nil once an advance succeeds.
func (p *Progress) ValidationError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Next advances the wizard one step. Advancing past the business info step is
// blocked unless every required field is filled and the email parses; a
// blocked advance stays on the current step and records the validation error.
func (p *Progress) Next() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.step >= wizardSteps {
		return goerrors.New("already on the final step", goerrors.CategoryConflict)
	}

	if p.step == StepBusinessInfo {
		if err := p.validateBusinessInfo(); err != nil {
			p.lastErr = err
			return err
		}
	}

	p.lastErr = nil
	p.step++
	return nil
}

// Back moves one step backwards, never before the first step.
func (p *Progress) Back() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step > StepBusinessInfo {
		p.step--
	}
}

// Upload stores the file through the client and records the returned URL
// under the asset kind. Safe to call from any step.
func (p *Progress) Upload(ctx context.Context, file io.Reader, filename string, kind AssetKind) (string, error) {
	url, err := p.uploader.UploadAsset(ctx, file, filename, kind)
	if err != nil {
		p.logger.Warn("asset upload failed: %v", err)
		return "", err
	}

	p.mu.Lock()
	p.assetURLs[kind] = url
	p.mu.Unlock()
	return url, nil
}

// AssetURL returns the uploaded URL for the kind, if any.
func (p *Progress) AssetURL(kind AssetKind) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	url, ok := p.assetURLs[kind]
	return url, ok
}

// Profile assembles the submission payload from fields and uploaded assets.
func (p *Progress) Profile() CompanyProfile {
	p.mu.Lock()
	defer p.mu.Unlock()

	return CompanyProfile{
		CompanyName:        p.fields["company_name"],
		OwnerName:          p.fields["owner_name"],
		Email:              p.fields["email"],
		Phone:              p.fields["phone"],
		Website:            p.fields["website"],
		Description:        p.fields["description"],
		LogoURL:            p.assetURLs[AssetLogo],
		PricingDocumentURL: p.assetURLs[AssetDocument],
	}
}

// Submit sends the assembled profile through the manager. Only this call
// mutates the durable session.
func (p *Progress) Submit(ctx context.Context, manager *Manager) (State, error) {
	profile := p.Profile()

	state, err := manager.CompleteOnboarding(ctx, profile)
	if err != nil {
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		return state, err
	}

	p.mu.Lock()
	p.lastErr = nil
	p.mu.Unlock()
	return state, nil
}

func (p *Progress) validateBusinessInfo() error {
	missing := []string{}
	for _, name := range requiredProfileFields {
		if p.fields[name] == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return goerrors.New("please fill in all required fields", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"missing": missing})
	}

	if !emailPattern.MatchString(p.fields["email"]) {
		return goerrors.New("please enter a valid email address", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "email"})
	}

	return nil
}
