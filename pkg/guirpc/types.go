package guirpc

import (
	"fmt"
	"time"
)

// HostInfo identifies which source a snapshot came from.
type HostInfo struct {
	Name string `json:"name"`
}

// ActiveTaskState mirrors the client's numeric process-state codes.
type ActiveTaskState int

const (
	TaskUninitialized ActiveTaskState = 0
	TaskExecuting     ActiveTaskState = 1
	TaskAbortPending  ActiveTaskState = 5
	TaskQuitPending   ActiveTaskState = 8
	TaskSuspended     ActiveTaskState = 9
	TaskCopyPending   ActiveTaskState = 10
)

var activeTaskStateNames = map[ActiveTaskState]string{
	TaskUninitialized: "Uninitialized",
	TaskExecuting:     "Executing",
	TaskAbortPending:  "AbortPending",
	TaskQuitPending:   "QuitPending",
	TaskSuspended:     "Suspended",
	TaskCopyPending:   "CopyPending",
}

// ActiveTaskStateFromCode maps a wire code to an ActiveTaskState.
func ActiveTaskStateFromCode(code int) (ActiveTaskState, error) {
	s := ActiveTaskState(code)
	if _, ok := activeTaskStateNames[s]; !ok {
		return 0, fmt.Errorf("unknown active task state %d", code)
	}
	return s, nil
}

// String returns the symbolic name, e.g. "Executing".
func (s ActiveTaskState) String() string {
	if name, ok := activeTaskStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ActiveTaskState(%d)", int(s))
}

// MarshalText renders the symbolic name in JSON and YAML.
func (s ActiveTaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ResultState is the lifecycle state of a result. The numeric order is part
// of the wire protocol.
type ResultState int

const (
	ResultNew ResultState = iota
	ResultFilesDownloading
	ResultFilesDownloaded
	ResultComputeError
	ResultFilesUploading
	ResultFilesUploaded
	ResultAborted
	ResultUploadFailed
)

var resultStateNames = [...]string{
	ResultNew:              "New",
	ResultFilesDownloading: "FilesDownloading",
	ResultFilesDownloaded:  "FilesDownloaded",
	ResultComputeError:     "ComputeError",
	ResultFilesUploading:   "FilesUploading",
	ResultFilesUploaded:    "FilesUploaded",
	ResultAborted:          "Aborted",
	ResultUploadFailed:     "UploadFailed",
}

// ResultStateFromCode maps a wire code to a ResultState.
func ResultStateFromCode(code int) (ResultState, error) {
	if code < 0 || code >= len(resultStateNames) {
		return 0, fmt.Errorf("unknown result state %d", code)
	}
	return ResultState(code), nil
}

// String returns the symbolic name, e.g. "FilesDownloaded".
func (s ResultState) String() string {
	if s >= 0 && int(s) < len(resultStateNames) {
		return resultStateNames[s]
	}
	return fmt.Sprintf("ResultState(%d)", int(s))
}

// MarshalText renders the symbolic name in JSON and YAML.
func (s ResultState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ActiveTask is the running-process view of a result.
type ActiveTask struct {
	ActiveTaskState ActiveTaskState `json:"active_task_state"`
	FractionDone    float64         `json:"fraction_done"`
	ElapsedTime     float64         `json:"elapsed_time"`
}

// Result is one work unit's status at poll time.
type Result struct {
	Name                      string      `json:"name"`
	WUName                    string      `json:"wu_name"`
	Platform                  string      `json:"platform"`
	ProjectURL                string      `json:"project_url"`
	FinalCPUTime              float64     `json:"final_cpu_time"`
	FinalElapsedTime          float64     `json:"final_elapsed_time"`
	EstimatedCPUTimeRemaining float64     `json:"estimated_cpu_time_remaining"`
	State                     ResultState `json:"state"`
	ReceivedTime              time.Time   `json:"received_time"`
	ReportDeadline            time.Time   `json:"report_deadline"`
	ActiveTask                ActiveTask  `json:"active_task"`
}

// ProjectInfo describes an attached project. No query fills it yet.
type ProjectInfo struct {
	ProjectName string  `json:"project_name"`
	MasterURL   string  `json:"master_url"`
	UserName    string  `json:"user_name"`
	TeamName    *string `json:"team_name"`
}

// SimpleGuiInfo is the snapshot produced by one successful poll.
type SimpleGuiInfo struct {
	Host     HostInfo      `json:"host"`
	Projects []ProjectInfo `json:"projects"`
	Results  []Result      `json:"results"`
}
