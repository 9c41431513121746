package job

import (
	"context"
	"errors"
	"sync"

	"k8s.io/client-go/kubernetes"

	"github.com/kubejob/jobtail/pkg/tracker"
)

// Feed turns the tracker's channel surface into callbacks, delivering events
// one at a time in the order they were emitted. A callback may return
// tracker.StopTrack to end the watch early without error.
type Feed interface {
	OnContainerWaiting(func(ContainerWaitingReport) error)
	OnContainerLogChunk(func(*ContainerLogChunk) error)
	OnContainerDone(func(ContainerDoneReport) error)
	OnStreamError(func(StreamErrorReport) error)
	OnReport(func(*ExitReport) error)

	GetReport() *ExitReport
	Track(ctx context.Context, name, namespace string, kube kubernetes.Interface, opts Options) error
}

func NewFeed() Feed {
	return &feed{}
}

type feed struct {
	OnContainerWaitingFunc  func(ContainerWaitingReport) error
	OnContainerLogChunkFunc func(*ContainerLogChunk) error
	OnContainerDoneFunc     func(ContainerDoneReport) error
	OnStreamErrorFunc       func(StreamErrorReport) error
	OnReportFunc            func(*ExitReport) error

	reportMux sync.Mutex
	report    *ExitReport
}

func (f *feed) OnContainerWaiting(function func(ContainerWaitingReport) error) {
	f.OnContainerWaitingFunc = function
}

func (f *feed) OnContainerLogChunk(function func(*ContainerLogChunk) error) {
	f.OnContainerLogChunkFunc = function
}

func (f *feed) OnContainerDone(function func(ContainerDoneReport) error) {
	f.OnContainerDoneFunc = function
}

func (f *feed) OnStreamError(function func(StreamErrorReport) error) {
	f.OnStreamErrorFunc = function
}

func (f *feed) OnReport(function func(*ExitReport) error) {
	f.OnReportFunc = function
}

func (f *feed) Track(ctx context.Context, name, namespace string, kube kubernetes.Interface, opts Options) error {
	return f.track(ctx, NewTracker(name, namespace, kube, opts))
}

func (f *feed) track(ctx context.Context, job *Tracker) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errorChan := make(chan error, 1)
	doneChan := make(chan struct{})

	go func() {
		if err := job.Track(ctx); err != nil {
			errorChan <- err
		} else {
			doneChan <- struct{}{}
		}
	}()

	for {
		select {
		case report := <-job.ContainerWaiting:
			if f.OnContainerWaitingFunc != nil {
				if err := f.OnContainerWaitingFunc(report); err != nil {
					return stopTrackToNil(err)
				}
			}

		case chunk := <-job.ContainerLogChunk:
			if f.OnContainerLogChunkFunc != nil {
				if err := f.OnContainerLogChunkFunc(chunk); err != nil {
					return stopTrackToNil(err)
				}
			}

		case report := <-job.ContainerDone:
			if f.OnContainerDoneFunc != nil {
				if err := f.OnContainerDoneFunc(report); err != nil {
					return stopTrackToNil(err)
				}
			}

		case report := <-job.StreamError:
			if f.OnStreamErrorFunc != nil {
				if err := f.OnStreamErrorFunc(report); err != nil {
					return stopTrackToNil(err)
				}
			}

		case err := <-errorChan:
			return err

		case <-doneChan:
			// Events can still sit buffered when Track returns; deliver every
			// one of them before giving the report the last word.
			return stopTrackToNil(f.drainPending(job))
		}
	}
}

func (f *feed) drainPending(job *Tracker) error {
	for {
		select {
		case report := <-job.ContainerWaiting:
			if f.OnContainerWaitingFunc != nil {
				if err := f.OnContainerWaitingFunc(report); err != nil {
					return err
				}
			}

		case chunk := <-job.ContainerLogChunk:
			if f.OnContainerLogChunkFunc != nil {
				if err := f.OnContainerLogChunkFunc(chunk); err != nil {
					return err
				}
			}

		case report := <-job.ContainerDone:
			if f.OnContainerDoneFunc != nil {
				if err := f.OnContainerDoneFunc(report); err != nil {
					return err
				}
			}

		case report := <-job.StreamError:
			if f.OnStreamErrorFunc != nil {
				if err := f.OnStreamErrorFunc(report); err != nil {
					return err
				}
			}

		default:
			select {
			case report := <-job.Report:
				return f.handleReport(report)
			default:
				return nil
			}
		}
	}
}

func (f *feed) handleReport(report *ExitReport) error {
	f.setReport(report)
	if f.OnReportFunc != nil {
		return f.OnReportFunc(report)
	}
	return nil
}

func (f *feed) setReport(report *ExitReport) {
	f.reportMux.Lock()
	defer f.reportMux.Unlock()
	f.report = report
}

func (f *feed) GetReport() *ExitReport {
	f.reportMux.Lock()
	defer f.reportMux.Unlock()
	return f.report
}

func stopTrackToNil(err error) error {
	if errors.Is(err, tracker.StopTrack) {
		return nil
	}
	return err
}
