package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"

	"github.com/kubejob/jobtail/pkg/tracker"
	"github.com/kubejob/jobtail/pkg/tracker/container"
)

// ContainerDoneReport is emitted once per tracked container after its log
// stream closed and a terminated status was observed.
type ContainerDoneReport struct {
	Ref   container.Ref
	State container.State
}

// StreamErrorReport is emitted when one container's log stream fails.
// Sibling streams keep running.
type StreamErrorReport struct {
	Ref container.Ref
	Err error
}

type Options struct {
	// Containers selects the regular containers to tail. Empty means all
	// regular containers of the pod.
	Containers []string

	// InitLogs tails all init containers, sequentially and before any regular
	// container, matching their execution order.
	InitLogs bool

	// PollInterval is the delay between container status polls while waiting
	// for a loggable or terminated state.
	PollInterval time.Duration
}

// Tracker watches a single job's pod, streams logs from its containers and
// reports their final exit state. One coordinating goroutine runs Track; one
// goroutine per concurrently streamed regular container does the tailing.
type Tracker struct {
	tracker.Tracker

	Containers   []string
	InitLogs     bool
	PollInterval time.Duration

	ContainerWaiting  chan ContainerWaitingReport
	ContainerLogChunk chan *ContainerLogChunk
	ContainerDone     chan ContainerDoneReport
	StreamError       chan StreamErrorReport
	Report            chan *ExitReport

	podName string

	readSnapshot func(ctx context.Context) (*Snapshot, error)
	openStream   func(ctx context.Context, podName, containerName string) (io.ReadCloser, error)
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewTracker(name, namespace string, kube kubernetes.Interface, opts Options) *Tracker {
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Second
	}

	t := &Tracker{
		Tracker: tracker.Tracker{
			Kube:             kube,
			Namespace:        namespace,
			FullResourceName: fmt.Sprintf("job/%s", name),
			ResourceName:     name,
		},

		Containers:   opts.Containers,
		InitLogs:     opts.InitLogs,
		PollInterval: pollInterval,

		ContainerWaiting:  make(chan ContainerWaitingReport, 10),
		ContainerLogChunk: make(chan *ContainerLogChunk, 1000),
		ContainerDone:     make(chan ContainerDoneReport, 10),
		StreamError:       make(chan StreamErrorReport, 10),
		Report:            make(chan *ExitReport, 1),
	}

	t.readSnapshot = t.ReadSnapshot
	t.openStream = t.openLogsStream
	t.sleep = sleepWithContext

	return t
}

// Track drives the full watch: resolve the pod, tail init containers
// sequentially, tail selected regular containers concurrently, then build the
// exit report once every tracked container has terminated. Returns only fatal
// errors; per-container stream failures go to the StreamError channel.
func (job *Tracker) Track(ctx context.Context) error {
	snapshot, err := job.readSnapshot(ctx)
	if err != nil {
		return err
	}
	job.podName = snapshot.PodName

	worklist, err := job.resolveWorklist(snapshot)
	if err != nil {
		return err
	}

	var tracked []container.Ref

	if job.InitLogs {
		// Init containers run one at a time, so they are tailed one at a time.
		for _, cs := range snapshot.InitContainers {
			if err := job.tailContainer(ctx, cs.Ref); err != nil {
				return err
			}
			tracked = append(tracked, cs.Ref)
		}
	}

	if err := job.tailContainersConcurrently(ctx, worklist); err != nil {
		return err
	}
	tracked = append(tracked, worklist...)

	final, err := job.readSnapshot(ctx)
	if err != nil {
		return err
	}

	report, err := NewExitReport(final, tracked)
	if err != nil {
		return err
	}

	job.Report <- report
	return nil
}

// resolveWorklist maps the user selection onto the pod's regular containers,
// preserving pod-spec order. An unknown name fails the watch before any
// stream is opened.
func (job *Tracker) resolveWorklist(snapshot *Snapshot) ([]container.Ref, error) {
	podContainers := lo.Map(snapshot.Containers, func(cs ContainerSnapshot, _ int) string {
		return cs.Ref.Name
	})

	for _, name := range job.Containers {
		if !lo.Contains(podContainers, name) {
			return nil, &tracker.ConfigurationError{
				Message: fmt.Sprintf("container %q not found in po/%s of %s (pod containers: %s)",
					name, snapshot.PodName, job.FullResourceName, strings.Join(podContainers, ", ")),
			}
		}
	}

	var worklist []container.Ref
	for _, cs := range snapshot.Containers {
		if len(job.Containers) == 0 || lo.Contains(job.Containers, cs.Ref.Name) {
			worklist = append(worklist, cs.Ref)
		}
	}

	return worklist, nil
}

func (job *Tracker) tailContainersConcurrently(ctx context.Context, worklist []container.Ref) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	fatalErrs := make(chan error, len(worklist))

	for _, ref := range worklist {
		ref := ref

		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := job.tailContainer(ctx, ref); err != nil {
				fatalErrs <- err
				cancel(fmt.Errorf("tailing %s failed: %w", ref, err))
			}
		}()
	}

	wg.Wait()
	close(fatalErrs)

	// Prefer the error that caused the cancellation over the secondary
	// context.Canceled errors of the sibling goroutines.
	var fatalErr error
	for err := range fatalErrs {
		if fatalErr == nil || errors.Is(fatalErr, context.Canceled) {
			fatalErr = err
		}
	}
	return fatalErr
}

// tailContainer gates the container to a loggable state, streams its logs and
// waits for termination. Gate and status failures are fatal to the watch;
// stream failures are reported per container and tailing moves on.
func (job *Tracker) tailContainer(ctx context.Context, ref container.Ref) error {
	state, err := job.awaitContainerLoggable(ctx, ref)
	if err != nil {
		return err
	}

	klog.V(2).Infof("%s %s is %s, following logs", job.FullResourceName, ref, state.Kind)

	if err := job.followContainerLogs(ctx, ref); err != nil {
		select {
		case job.StreamError <- StreamErrorReport{Ref: ref, Err: err}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	state, err = job.awaitContainerTerminated(ctx, ref)
	if err != nil {
		return err
	}

	select {
	case job.ContainerDone <- ContainerDoneReport{Ref: ref, State: state}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
