package job

import (
	"github.com/acarl005/stripansi"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"

	"github.com/kubejob/jobtail/pkg/tracker"
	"github.com/kubejob/jobtail/pkg/tracker/container"
)

// ExitReport is the final word on a watch: per-container exit codes plus the
// raw final snapshot for verbatim inspection. Built once, after every tracked
// container terminated.
type ExitReport struct {
	InitContainers map[string]int32
	Containers     map[string]int32
	Snapshot       *Snapshot

	tracked []container.Ref
}

// NewExitReport extracts exit codes for all tracked containers from the final
// snapshot. A tracked container that is not terminated fails with
// IncompleteStatusError; the orchestrator's ordering makes that unreachable in
// correct operation.
func NewExitReport(snapshot *Snapshot, tracked []container.Ref) (*ExitReport, error) {
	report := &ExitReport{
		InitContainers: make(map[string]int32),
		Containers:     make(map[string]int32),
		Snapshot:       snapshot,
		tracked:        tracked,
	}

	for _, ref := range tracked {
		cs, found := snapshot.Lookup(ref)
		if !found || cs.State.Terminated == nil {
			return nil, &tracker.IncompleteStatusError{ContainerName: ref.Name}
		}

		if ref.Kind == container.Init {
			report.InitContainers[ref.Name] = cs.State.Terminated.ExitCode
		} else {
			report.Containers[ref.Name] = cs.State.Terminated.ExitCode
		}
	}

	return report, nil
}

// RenderExitCodes renders the per-container exit codes as YAML, grouped under
// init_containers and containers.
func (r *ExitReport) RenderExitCodes() (string, error) {
	data, err := yaml.Marshal(map[string]map[string]int32{
		"init_containers": r.InitContainers,
		"containers":      r.Containers,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RenderStatuses renders the raw final status object of every tracked
// container as YAML, in the same grouping as the exit codes.
func (r *ExitReport) RenderStatuses() (string, error) {
	statuses := map[string]map[string]corev1.ContainerStatus{
		"init_containers": {},
		"containers":      {},
	}

	for _, ref := range r.tracked {
		cs, found := r.Snapshot.Lookup(ref)
		if !found {
			continue
		}

		group := "containers"
		if ref.Kind == container.Init {
			group = "init_containers"
		}
		statuses[group][ref.Name] = sanitizeStatus(cs.Status)
	}

	data, err := yaml.Marshal(statuses)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sanitizeStatus strips terminal control sequences from container-supplied
// text. A terminated container's message may embed the tail of its own log,
// ANSI colors included.
func sanitizeStatus(status corev1.ContainerStatus) corev1.ContainerStatus {
	if t := status.State.Terminated; t != nil {
		terminated := *t
		terminated.Reason = stripansi.Strip(terminated.Reason)
		terminated.Message = stripansi.Strip(terminated.Message)
		status.State.Terminated = &terminated
	}
	if w := status.State.Waiting; w != nil {
		waiting := *w
		waiting.Reason = stripansi.Strip(waiting.Reason)
		waiting.Message = stripansi.Strip(waiting.Message)
		status.State.Waiting = &waiting
	}
	return status
}
