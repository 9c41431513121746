package job

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"

	"github.com/kubejob/jobtail/pkg/tracker"
	"github.com/kubejob/jobtail/pkg/tracker/container"
)

// ContainerSnapshot pairs the narrowed lifecycle state of one container with
// the raw status object as reported by the kubelet.
type ContainerSnapshot struct {
	Ref    container.Ref
	State  container.State
	Status corev1.ContainerStatus
}

// Snapshot is a point-in-time view of all container states of the job's pod,
// taken from a single API read. Snapshots are never merged: each poll replaces
// the previous one.
type Snapshot struct {
	PodName        string
	InitContainers []ContainerSnapshot
	Containers     []ContainerSnapshot
}

func (s *Snapshot) Lookup(ref container.Ref) (ContainerSnapshot, bool) {
	group := s.Containers
	if ref.Kind == container.Init {
		group = s.InitContainers
	}

	for _, cs := range group {
		if cs.Ref.Name == ref.Name {
			return cs, true
		}
	}
	return ContainerSnapshot{}, false
}

// NewSnapshot builds a snapshot from one pod object. Containers follow
// pod-spec order; a container the kubelet has not reported yet gets a zero
// status, which narrows to Waiting.
func NewSnapshot(pod *corev1.Pod) *Snapshot {
	statusByName := make(map[string]corev1.ContainerStatus)
	for _, cs := range pod.Status.InitContainerStatuses {
		statusByName[statusKey(container.Init, cs.Name)] = cs
	}
	for _, cs := range pod.Status.ContainerStatuses {
		statusByName[statusKey(container.Regular, cs.Name)] = cs
	}

	snapshot := &Snapshot{PodName: pod.Name}
	for _, conf := range pod.Spec.InitContainers {
		snapshot.InitContainers = append(snapshot.InitContainers, newContainerSnapshot(container.Init, conf.Name, statusByName))
	}
	for _, conf := range pod.Spec.Containers {
		snapshot.Containers = append(snapshot.Containers, newContainerSnapshot(container.Regular, conf.Name, statusByName))
	}

	return snapshot
}

func newContainerSnapshot(kind container.Kind, name string, statusByName map[string]corev1.ContainerStatus) ContainerSnapshot {
	status := statusByName[statusKey(kind, name)]
	return ContainerSnapshot{
		Ref:    container.Ref{Kind: kind, Name: name},
		State:  container.NewState(status.State),
		Status: status,
	}
}

func statusKey(kind container.Kind, name string) string {
	return fmt.Sprintf("%s/%s", kind, name)
}

// ReadSnapshot resolves the job's pod and extracts all container states in
// one read. Stateless; safe to call repeatedly and concurrently.
func (job *Tracker) ReadSnapshot(ctx context.Context) (*Snapshot, error) {
	podList, err := job.Kube.CoreV1().Pods(job.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("job-name=%s", job.ResourceName),
	})
	if err != nil {
		return nil, &tracker.ClusterQueryError{
			Op:  fmt.Sprintf("list pods of %s", job.FullResourceName),
			Err: err,
		}
	}

	if len(podList.Items) == 0 {
		return nil, &tracker.JobNotFoundError{Namespace: job.Namespace, Name: job.ResourceName}
	}

	// A retried job leaves older pods behind; the most recently created one
	// is the attempt worth watching.
	pod := lo.MaxBy(podList.Items, func(a, b corev1.Pod) bool {
		return b.CreationTimestamp.Before(&a.CreationTimestamp)
	})

	klog.V(4).Infof("%s resolved to po/%s (%d pod(s) matched)", job.FullResourceName, pod.Name, len(podList.Items))

	return NewSnapshot(&pod), nil
}
