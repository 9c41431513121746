// Package container models the lifecycle state of a single pod container as a
// tagged union narrowed from the open-ended corev1.ContainerState.
package container

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type Kind string

const (
	Init    Kind = "init"
	Regular Kind = "regular"
)

// Ref identifies a container within the tracked pod.
type Ref struct {
	Kind Kind
	Name string
}

func (r Ref) String() string {
	if r.Kind == Init {
		return fmt.Sprintf("initContainer/%s", r.Name)
	}
	return fmt.Sprintf("container/%s", r.Name)
}

type StateKind string

const (
	StateWaiting    StateKind = "Waiting"
	StateRunning    StateKind = "Running"
	StateTerminated StateKind = "Terminated"
)

// State holds exactly one of the three lifecycle variants. Transitions are
// monotonic Waiting -> Running -> Terminated, except a container that fails
// before starting goes straight from Waiting to Terminated.
type State struct {
	Kind StateKind

	Waiting    *Waiting
	Running    *Running
	Terminated *Terminated
}

type Waiting struct {
	Reason  string
	Message string
}

type Running struct {
	StartedAt metav1.Time
}

type Terminated struct {
	ExitCode   int32
	Reason     string
	Message    string
	StartedAt  metav1.Time
	FinishedAt metav1.Time
}

// NewState narrows a raw kubelet-reported state. An empty
// corev1.ContainerState means the kubelet has not reported the container yet,
// which Kubernetes defines as waiting, so the exactly-one-variant invariant
// holds for every input.
func NewState(raw corev1.ContainerState) State {
	switch {
	case raw.Terminated != nil:
		return State{
			Kind: StateTerminated,
			Terminated: &Terminated{
				ExitCode:   raw.Terminated.ExitCode,
				Reason:     raw.Terminated.Reason,
				Message:    raw.Terminated.Message,
				StartedAt:  raw.Terminated.StartedAt,
				FinishedAt: raw.Terminated.FinishedAt,
			},
		}
	case raw.Running != nil:
		return State{
			Kind:    StateRunning,
			Running: &Running{StartedAt: raw.Running.StartedAt},
		}
	case raw.Waiting != nil:
		return State{
			Kind: StateWaiting,
			Waiting: &Waiting{
				Reason:  raw.Waiting.Reason,
				Message: raw.Waiting.Message,
			},
		}
	default:
		return State{Kind: StateWaiting, Waiting: &Waiting{}}
	}
}

// IsLoggable reports whether logs can be requested for the container: either
// a live follow (running) or a replay of the buffered log (terminated).
func (s State) IsLoggable() bool {
	return s.Kind == StateRunning || s.Kind == StateTerminated
}

func (s State) IsTerminated() bool {
	return s.Kind == StateTerminated
}
