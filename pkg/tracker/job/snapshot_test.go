package job

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/kubejob/jobtail/pkg/tracker"
	"github.com/kubejob/jobtail/pkg/tracker/container"
)

func jobPod(name, jobName string, createdAt time.Time) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         "default",
			Labels:            map[string]string{"job-name": jobName},
			CreationTimestamp: metav1.NewTime(createdAt),
		},
		Spec: corev1.PodSpec{
			InitContainers: []corev1.Container{{Name: "bootstrap"}},
			Containers:     []corev1.Container{{Name: "step"}, {Name: "sidecar"}},
		},
		Status: corev1.PodStatus{
			InitContainerStatuses: []corev1.ContainerStatus{
				{Name: "bootstrap", State: terminated(0)},
			},
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "step", State: running()},
				{Name: "sidecar", State: waiting("PodInitializing")},
			},
		},
	}
}

func TestReadSnapshot(t *testing.T) {
	createdAt := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	clientset := fake.NewSimpleClientset(jobPod("pi-x8k2v", "pi", createdAt))

	tr := NewTracker("pi", "default", clientset, Options{})

	snapshot, err := tr.ReadSnapshot(context.Background())
	require.NoError(t, err)

	require.Equal(t, "pi-x8k2v", snapshot.PodName)

	require.Len(t, snapshot.InitContainers, 1)
	require.Equal(t, container.Ref{Kind: container.Init, Name: "bootstrap"}, snapshot.InitContainers[0].Ref)
	require.Equal(t, container.StateTerminated, snapshot.InitContainers[0].State.Kind)

	require.Len(t, snapshot.Containers, 2)
	require.Equal(t, "step", snapshot.Containers[0].Ref.Name)
	require.Equal(t, container.StateRunning, snapshot.Containers[0].State.Kind)
	require.Equal(t, "sidecar", snapshot.Containers[1].Ref.Name)
	require.Equal(t, container.StateWaiting, snapshot.Containers[1].State.Kind)
	require.Equal(t, "PodInitializing", snapshot.Containers[1].State.Waiting.Reason)
}

func TestReadSnapshotIsIdempotent(t *testing.T) {
	createdAt := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	clientset := fake.NewSimpleClientset(jobPod("pi-x8k2v", "pi", createdAt))

	tr := NewTracker("pi", "default", clientset, Options{})

	first, err := tr.ReadSnapshot(context.Background())
	require.NoError(t, err)
	second, err := tr.ReadSnapshot(context.Background())
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(first, second))
}

func TestReadSnapshotPicksMostRecentPod(t *testing.T) {
	older := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(5 * time.Minute)

	clientset := fake.NewSimpleClientset(
		jobPod("pi-old", "pi", older),
		jobPod("pi-new", "pi", newer),
	)

	tr := NewTracker("pi", "default", clientset, Options{})

	snapshot, err := tr.ReadSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, "pi-new", snapshot.PodName)
}

func TestReadSnapshotNoPodFound(t *testing.T) {
	clientset := fake.NewSimpleClientset()

	tr := NewTracker("pi", "default", clientset, Options{})

	_, err := tr.ReadSnapshot(context.Background())

	var notFound *tracker.JobNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "pi", notFound.Name)
	require.Equal(t, "default", notFound.Namespace)
}

func TestReadSnapshotWrapsListFailure(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	clientset.PrependReactor("list", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, fmt.Errorf("connection refused")
	})

	tr := NewTracker("pi", "default", clientset, Options{})

	_, err := tr.ReadSnapshot(context.Background())

	var queryErr *tracker.ClusterQueryError
	require.ErrorAs(t, err, &queryErr)
	require.ErrorContains(t, err, "connection refused")
	require.False(t, errors.As(err, new(*tracker.JobNotFoundError)))
}
