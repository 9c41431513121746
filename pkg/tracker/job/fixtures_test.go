package job

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubejob/jobtail/pkg/tracker/container"
)

func waiting(reason string) corev1.ContainerState {
	return corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: reason}}
}

func running() corev1.ContainerState {
	return corev1.ContainerState{Running: &corev1.ContainerStateRunning{StartedAt: metav1.Now()}}
}

func terminated(exitCode int32) corev1.ContainerState {
	return corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{ExitCode: exitCode}}
}

func containerSnap(kind container.Kind, name string, state corev1.ContainerState) ContainerSnapshot {
	return ContainerSnapshot{
		Ref:    container.Ref{Kind: kind, Name: name},
		State:  container.NewState(state),
		Status: corev1.ContainerStatus{Name: name, State: state},
	}
}

func snapshotOf(podName string, containers ...ContainerSnapshot) *Snapshot {
	snapshot := &Snapshot{PodName: podName}
	for _, cs := range containers {
		if cs.Ref.Kind == container.Init {
			snapshot.InitContainers = append(snapshot.InitContainers, cs)
		} else {
			snapshot.Containers = append(snapshot.Containers, cs)
		}
	}
	return snapshot
}

// snapshotScript feeds a tracker one prepared snapshot per read; the last one
// repeats once the script runs out. Errors can be planted at specific calls.
type snapshotScript struct {
	mu        sync.Mutex
	snapshots []*Snapshot
	errAt     map[int]error // 1-based call number
	calls     int
	last      *Snapshot
}

func scriptedSnapshots(snapshots ...*Snapshot) *snapshotScript {
	return &snapshotScript{snapshots: snapshots}
}

func (s *snapshotScript) read(_ context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err := s.errAt[s.calls]; err != nil {
		return nil, err
	}

	if len(s.snapshots) > 0 {
		s.last = s.snapshots[0]
		if len(s.snapshots) > 1 {
			s.snapshots = s.snapshots[1:]
		}
	}
	return s.last, nil
}

func (s *snapshotScript) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *snapshotScript) lastSnapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// streamFixture serves canned log content per container and records every
// open, verifying the container was loggable in the most recent snapshot at
// the moment the stream was opened.
type streamFixture struct {
	mu               sync.Mutex
	content          map[string]string
	script           *snapshotScript
	opened           []string
	nonLoggableOpens []string
}

func fixedStreams(script *snapshotScript, content map[string]string) *streamFixture {
	return &streamFixture{script: script, content: content}
}

func (f *streamFixture) open(_ context.Context, _ string, containerName string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.opened = append(f.opened, containerName)
	f.mu.Unlock()

	if f.script == nil {
		return io.NopCloser(strings.NewReader(f.content[containerName])), nil
	}

	if snapshot := f.script.lastSnapshot(); snapshot != nil {
		loggable := false
		for _, group := range [][]ContainerSnapshot{snapshot.InitContainers, snapshot.Containers} {
			for _, cs := range group {
				if cs.Ref.Name == containerName && cs.State.IsLoggable() {
					loggable = true
				}
			}
		}
		if !loggable {
			f.mu.Lock()
			f.nonLoggableOpens = append(f.nonLoggableOpens, containerName)
			f.mu.Unlock()
		}
	}

	return io.NopCloser(strings.NewReader(f.content[containerName])), nil
}

func (f *streamFixture) openCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func (f *streamFixture) opensWhileNotLoggable() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.nonLoggableOpens...)
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func yieldSleep(_ context.Context, _ time.Duration) error {
	time.Sleep(time.Millisecond)
	return nil
}

// drainTracker collects everything buffered on the tracker's channels after
// Track returned.
type trackerEvents struct {
	waits      []ContainerWaitingReport
	logLines   []string // "<container>: <message>"
	done       []ContainerDoneReport
	streamErrs []StreamErrorReport
	report     *ExitReport
}

func drainTracker(job *Tracker) trackerEvents {
	var events trackerEvents

	for {
		select {
		case report := <-job.ContainerWaiting:
			events.waits = append(events.waits, report)
		case chunk := <-job.ContainerLogChunk:
			for _, line := range chunk.LogLines {
				events.logLines = append(events.logLines, chunk.Ref.Name+": "+line.Message)
			}
		case report := <-job.ContainerDone:
			events.done = append(events.done, report)
		case report := <-job.StreamError:
			events.streamErrs = append(events.streamErrs, report)
		case report := <-job.Report:
			events.report = report
		default:
			return events
		}
	}
}
