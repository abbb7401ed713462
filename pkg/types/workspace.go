package types

// WorkspaceStatus is the customer-facing lifecycle status.
type WorkspaceStatus string

const (
	WorkspaceStatusActive    WorkspaceStatus = "active"
	WorkspaceStatusPaused    WorkspaceStatus = "paused"
	WorkspaceStatusSuspended WorkspaceStatus = "suspended"
	WorkspaceStatusCancelled WorkspaceStatus = "cancelled"
)

// ProvisionState tracks how far the provisioning run got.
//
//	requested -> database_ready -> active                                  (shared)
//	requested -> database_ready -> code_materialized -> repo_published -> active (dedicated)
//
// Any step may end in failed.
type ProvisionState string

const (
	ProvisionStateRequested        ProvisionState = "requested"
	ProvisionStateDatabaseReady    ProvisionState = "database_ready"
	ProvisionStateCodeMaterialized ProvisionState = "code_materialized"
	ProvisionStateRepoPublished    ProvisionState = "repo_published"
	ProvisionStateActive           ProvisionState = "active"
	ProvisionStateFailed           ProvisionState = "failed"
)

// Terminal reports whether no further provisioning step will run.
func (s ProvisionState) Terminal() bool {
	return s == ProvisionStateActive || s == ProvisionStateFailed
}

// ActivityAction is the kind of an audit entry.
type ActivityAction string

const (
	ActivityActionCreate     ActivityAction = "create"
	ActivityActionUpdate     ActivityAction = "update"
	ActivityActionDelete     ActivityAction = "delete"
	ActivityActionPause      ActivityAction = "pause"
	ActivityActionResume     ActivityAction = "resume"
	ActivityActionSuspend    ActivityAction = "suspend"
	ActivityActionCancel     ActivityAction = "cancel"
	ActivityActionBackup     ActivityAction = "backup"
	ActivityActionRestore    ActivityAction = "restore"
	ActivityActionMigrate    ActivityAction = "migrate"
	ActivityActionPlanChange ActivityAction = "plan_change"
	ActivityActionDeploy     ActivityAction = "deploy"
	ActivityActionSync       ActivityAction = "sync"
)

type BackupType string

const (
	BackupTypeManual    BackupType = "manual"
	BackupTypeAutomatic BackupType = "automatic"
)

// StepOutcome is one entry of a provisioning report.
type StepOutcome struct {
	Step      ProvisionState `json:"step"`
	OK        bool           `json:"ok"`
	Skipped   bool           `json:"skipped,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	ElapsedMs int64          `json:"elapsed_ms"`
}

// ProvisionReport is persisted on the workspace after each run.
type ProvisionReport struct {
	Topology Topology      `json:"topology"`
	Steps    []StepOutcome `json:"steps"`
}

func (r *ProvisionReport) Add(o StepOutcome) {
	r.Steps = append(r.Steps, o)
}
