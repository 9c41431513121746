package tracker

import (
	"errors"

	"k8s.io/client-go/kubernetes"
)

// StopTrack may be returned from a feed callback to stop tracking without
// reporting an error.
var StopTrack = errors.New("stop tracking now")

// Tracker carries the identity of the watched resource and the cluster handle
// shared by concrete trackers.
type Tracker struct {
	Kube             kubernetes.Interface
	Namespace        string
	ResourceName     string
	FullResourceName string // full resource name with resource kind (job/pi)
}
