package model

import "fmt"

// Step is one stage of the demo import wizard.
type Step string

const (
	StepBackup   Step = "backup"
	StepDownload Step = "download"
	StepPlugins  Step = "plugins"
	StepContent  Step = "content"
	StepFiles    Step = "files"
	StepSettings Step = "settings"
	StepCleanup  Step = "cleanup"
)

// Steps is the fixed order the wizard walks through.
var Steps = []Step{
	StepBackup,
	StepDownload,
	StepPlugins,
	StepContent,
	StepFiles,
	StepSettings,
	StepCleanup,
}

// ValidateStep returns an error if s is not a wizard step.
func ValidateStep(s Step) error {
	for _, v := range Steps {
		if s == v {
			return nil
		}
	}
	return fmt.Errorf("invalid import step %q: must be one of %v", s, Steps)
}

// Next returns the step after s, or "" when s is the last one.
func (s Step) Next() Step {
	for i, v := range Steps {
		if v == s && i+1 < len(Steps) {
			return Steps[i+1]
		}
	}
	return ""
}

// StepOptions are the boolean switches the wizard sends with each step.
type StepOptions struct {
	ImportContent       bool `json:"import_content"`
	ImportMedia         bool `json:"import_media"`
	ImportUsers         bool `json:"import_users"`
	ImportSettings      bool `json:"import_settings"`
	CleanInstall        bool `json:"clean_install"`
	BackupBeforeImport  bool `json:"backup_before_import"`
	BackupEssentialOnly bool `json:"backup_essential_only"`
}

// DefaultStepOptions mirrors the wizard's initial checkbox state.
func DefaultStepOptions() StepOptions {
	return StepOptions{
		ImportContent:  true,
		ImportMedia:    true,
		ImportUsers:    true,
		ImportSettings: true,
	}
}
