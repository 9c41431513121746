package job

import (
	"context"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/kubejob/jobtail/pkg/tracker"
	"github.com/kubejob/jobtail/pkg/tracker/container"
)

// ContainerWaitingReport is emitted on every poll that observes a container
// still waiting, so the operator can see why (image pull, scheduling, init
// containers ahead of it).
type ContainerWaitingReport struct {
	Ref     container.Ref
	Reason  string
	Message string
}

// awaitContainerLoggable polls until logs can be requested for the container.
// The returned state is Running or Terminated, never Waiting. There is no
// upper bound on the wait: a job may legitimately sit behind image pulls or
// scheduling, and cancelling ctx is the only way out.
func (job *Tracker) awaitContainerLoggable(ctx context.Context, ref container.Ref) (container.State, error) {
	return job.awaitContainerState(ctx, ref, container.State.IsLoggable)
}

// awaitContainerTerminated polls until the container has exited. Called after
// its log stream closes: the stream can hit EOF before the kubelet publishes
// the terminated status.
func (job *Tracker) awaitContainerTerminated(ctx context.Context, ref container.Ref) (container.State, error) {
	return job.awaitContainerState(ctx, ref, container.State.IsTerminated)
}

func (job *Tracker) awaitContainerState(ctx context.Context, ref container.Ref, reached func(container.State) bool) (container.State, error) {
	for {
		snapshot, err := job.readSnapshot(ctx)
		if err != nil {
			return container.State{}, err
		}

		cs, found := snapshot.Lookup(ref)
		if !found {
			return container.State{}, &tracker.ConfigurationError{
				Message: fmt.Sprintf("%s not found in po/%s of %s", ref, snapshot.PodName, job.FullResourceName),
			}
		}

		if reached(cs.State) {
			klog.V(4).Infof("%s %s reached state %s", job.FullResourceName, ref, cs.State.Kind)
			return cs.State, nil
		}

		if w := cs.State.Waiting; w != nil {
			select {
			case job.ContainerWaiting <- ContainerWaitingReport{Ref: ref, Reason: w.Reason, Message: w.Message}:
			case <-ctx.Done():
				return container.State{}, ctx.Err()
			}
		}

		if err := job.sleep(ctx, job.PollInterval); err != nil {
			return container.State{}, err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
