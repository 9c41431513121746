// Package display is the shared output sink for concurrent log streams.
// Every write happens under one mutex so the sink only ever receives whole
// lines, whichever container they come from.
package display

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gookit/color"
)

var (
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr

	mutex            = &sync.Mutex{}
	currentLogHeader = ""
)

func SetOut(out io.Writer) {
	mutex.Lock()
	defer mutex.Unlock()
	Out = out
	currentLogHeader = ""
}

func SetErr(err io.Writer) {
	mutex.Lock()
	defer mutex.Unlock()
	Err = err
}

type LogLine struct {
	Timestamp string
	Message   string
}

func OutF(format string, args ...interface{}) (n int, err error) {
	mutex.Lock()
	defer mutex.Unlock()
	return fmt.Fprintf(Out, format, args...)
}

func ErrF(format string, args ...interface{}) (n int, err error) {
	mutex.Lock()
	defer mutex.Unlock()
	return fmt.Fprintf(Err, format, args...)
}

// OutputLogLines writes a chunk of lines attributed to one container. The
// whole chunk goes out under a single lock acquisition, so concurrent streams
// cannot interleave inside it.
func OutputLogLines(header string, logLines []LogLine) {
	mutex.Lock()
	defer mutex.Unlock()

	if inline() {
		for _, line := range logLines {
			fmt.Fprintf(Out, ">> %s: %s\n", header, line.Message)
		}
		return
	}

	setLogHeader(header)
	for _, line := range logLines {
		fmt.Fprintln(Out, line.Message)
	}
}

func setLogHeader(logHeader string) {
	if currentLogHeader == logHeader {
		return
	}

	if currentLogHeader != "" {
		fmt.Fprintln(Out)
	}
	fmt.Fprintf(Out, "%s\n", color.Bold.Render(">> "+logHeader))
	currentLogHeader = logHeader
}

func inline() bool {
	return os.Getenv("JOBTAIL_LOG_INLINE") == "1"
}
