package tracker

import "fmt"

// JobNotFoundError is returned when no pod can be associated with the
// watched job. Fatal: there is nothing to tail.
type JobNotFoundError struct {
	Namespace string
	Name      string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("no pod found for job/%s in namespace %q", e.Name, e.Namespace)
}

// ClusterQueryError wraps a failed status read. Status reads are not retried
// silently: a failing read aborts the watch instead of masking a cluster
// outage.
type ClusterQueryError struct {
	Op  string
	Err error
}

func (e *ClusterQueryError) Error() string {
	return fmt.Sprintf("cluster query %s: %s", e.Op, e.Err)
}

func (e *ClusterQueryError) Unwrap() error { return e.Err }

// StreamError wraps a log stream that could not be opened or broke mid-read.
// Surfaced per container; sibling streams keep running.
type StreamError struct {
	PodName       string
	ContainerName string
	Err           error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("logs stream for po/%s container/%s: %s", e.PodName, e.ContainerName, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// ConfigurationError reports a user selection that does not match the pod,
// detected before any streaming starts.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// IncompleteStatusError means an exit report was requested while a tracked
// container had not terminated. The orchestrator ordering makes this
// unreachable in correct operation; it indicates a logic bug.
type IncompleteStatusError struct {
	ContainerName string
}

func (e *IncompleteStatusError) Error() string {
	return fmt.Sprintf("container %q has not terminated, exit report requested too early", e.ContainerName)
}
