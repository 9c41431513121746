package job

import (
	"context"
	"io"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"

	"github.com/kubejob/jobtail/pkg/display"
	"github.com/kubejob/jobtail/pkg/tracker"
	"github.com/kubejob/jobtail/pkg/tracker/container"
)

// ContainerLogChunk carries one batch of log lines attributed to a container.
// Line order within a container is exactly the order received from the API.
type ContainerLogChunk struct {
	PodName  string
	Ref      container.Ref
	LogLines []display.LogLine
}

func (job *Tracker) openLogsStream(ctx context.Context, podName, containerName string) (io.ReadCloser, error) {
	req := job.Kube.CoreV1().
		Pods(job.Namespace).
		GetLogs(podName, &corev1.PodLogOptions{
			Container:  containerName,
			Timestamps: true,
			Follow:     true,
		})

	return req.Stream(ctx)
}

// followContainerLogs reads the container's log stream to the end. For a
// running container this is a live follow that closes when the container
// terminates; for a terminated one the buffered log replays and the stream
// returns immediately. Only called for containers already observed loggable.
func (job *Tracker) followContainerLogs(ctx context.Context, ref container.Ref) error {
	readCloser, err := job.openStream(ctx, job.podName, ref.Name)
	if err != nil {
		// Known race: the container can go away between the readiness check
		// and the stream open. Surfaced, not skipped.
		return &tracker.StreamError{PodName: job.podName, ContainerName: ref.Name, Err: err}
	}
	defer readCloser.Close()

	chunkBuf := make([]byte, 1024*64)
	lineBuf := make([]byte, 0, 1024*4)

	for {
		n, err := readCloser.Read(chunkBuf)

		if n > 0 {
			chunkLines := make([]display.LogLine, 0)
			for i := 0; i < n; i++ {
				bt := chunkBuf[i]

				if bt == '\n' {
					if logLine, ok := parseLogLine(string(lineBuf)); ok {
						chunkLines = append(chunkLines, logLine)
					}
					lineBuf = lineBuf[:0]
					continue
				}

				lineBuf = append(lineBuf, bt)
			}

			if sendErr := job.sendLogChunk(ctx, ref, chunkLines); sendErr != nil {
				return nil
			}
		}

		if err == io.EOF {
			// The container's last write may lack a trailing newline; the
			// leftover bytes are still a line.
			if logLine, ok := parseLogLine(string(lineBuf)); ok {
				if sendErr := job.sendLogChunk(ctx, ref, []display.LogLine{logLine}); sendErr != nil {
					return nil
				}
			}
			break
		}
		if err != nil {
			return &tracker.StreamError{PodName: job.podName, ContainerName: ref.Name, Err: err}
		}

		select {
		case <-ctx.Done():
			klog.V(4).Infof("%s %s logs follow canceled: %s", job.FullResourceName, ref, context.Cause(ctx))
			return nil
		default:
		}
	}

	return nil
}

// parseLogLine splits one kubelet log line into its leading RFC3339 timestamp
// and the message. Timestamps are requested on the stream, so a line without
// the separator carries no message.
func parseLogLine(line string) (display.LogLine, bool) {
	lineParts := strings.SplitN(line, " ", 2)
	if len(lineParts) != 2 {
		return display.LogLine{}, false
	}
	return display.LogLine{Timestamp: lineParts[0], Message: lineParts[1]}, true
}

// sendLogChunk delivers lines without ever blocking past a cancelled watch:
// once the consumer is gone the buffered channel can fill up.
func (job *Tracker) sendLogChunk(ctx context.Context, ref container.Ref, logLines []display.LogLine) error {
	if len(logLines) == 0 {
		return nil
	}

	select {
	case job.ContainerLogChunk <- &ContainerLogChunk{PodName: job.podName, Ref: ref, LogLines: logLines}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
