// Package follow wires a job tracker feed to the output sink: live log lines
// go to the display, service messages go through logboek, and the final exit
// report is rendered once the job is done.
package follow

import (
	"context"
	"fmt"

	"github.com/werf/logboek"
	"k8s.io/apimachinery/pkg/util/duration"
	"k8s.io/client-go/kubernetes"

	"github.com/kubejob/jobtail/pkg/display"
	"github.com/kubejob/jobtail/pkg/tracker/job"
)

// TailJob watches the named job until every tracked container terminated,
// printing logs as they arrive and the exit report at the end. Returns nil
// exactly when the report was produced; container exit codes do not affect
// the result — the tool observes, it does not judge.
func TailJob(ctx context.Context, name, namespace string, kube kubernetes.Interface, opts job.Options) error {
	feed := job.NewFeed()

	feed.OnContainerWaiting(func(report job.ContainerWaitingReport) error {
		msg := fmt.Sprintf("# job/%s %s waiting", name, report.Ref)
		if report.Reason != "" {
			msg += ": " + report.Reason
		}
		if report.Message != "" {
			msg += fmt.Sprintf(" (%s)", report.Message)
		}
		logboek.Context(ctx).Default().LogF("%s\n", msg)
		return nil
	})

	feed.OnContainerLogChunk(func(chunk *job.ContainerLogChunk) error {
		header := fmt.Sprintf("po/%s %s", chunk.PodName, chunk.Ref)
		display.OutputLogLines(header, chunk.LogLines)
		return nil
	})

	feed.OnContainerDone(func(report job.ContainerDoneReport) error {
		t := report.State.Terminated
		msg := fmt.Sprintf("# job/%s %s terminated: exit code %d", name, report.Ref, t.ExitCode)
		if t.Reason != "" {
			msg += ", reason " + t.Reason
		}
		if !t.StartedAt.IsZero() && !t.FinishedAt.IsZero() {
			msg += fmt.Sprintf(", ran %s", duration.HumanDuration(t.FinishedAt.Sub(t.StartedAt.Time)))
		}
		logboek.Context(ctx).Default().LogF("%s\n", msg)
		return nil
	})

	feed.OnStreamError(func(report job.StreamErrorReport) error {
		logboek.Context(ctx).Warn().LogF("# job/%s %s logs stream failed: %s\n", name, report.Ref, report.Err)
		return nil
	})

	feed.OnReport(func(report *job.ExitReport) error {
		return renderExitReport(report)
	})

	return feed.Track(ctx, name, namespace, kube, opts)
}

func renderExitReport(report *job.ExitReport) error {
	statuses, err := report.RenderStatuses()
	if err != nil {
		return fmt.Errorf("render container statuses: %w", err)
	}

	exitCodes, err := report.RenderExitCodes()
	if err != nil {
		return fmt.Errorf("render container exit codes: %w", err)
	}

	display.OutF("\n------ container statuses ------\n%s", statuses)
	display.OutF("------ container exit codes ------\n%s", exitCodes)

	return nil
}
