// Package kubernetes watches pods through the kubernetes api
// and turns their lifecycle into member events
package kubernetes

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Lord-Y/ordinator"
	"github.com/Lord-Y/ordinator/logger"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/informers"
	clientset "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/tools/clientcmd"
)

// NewClientset returns a kubernetes client using the kubeconfig file
// or the in cluster config when kubeconfig is empty
func NewClientset(kubeconfig string) (clientset.Interface, error) {
	var (
		config *rest.Config
		err    error
	)
	if kubeconfig == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Fail to load kubernetes config")
	}

	client, err := clientset.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "Fail to build kubernetes client")
	}
	return client, nil
}

// NewPodSource returns a pod source from the provided options
func NewPodSource(options Options) (*PodSource, error) {
	if options.Client == nil {
		return nil, fmt.Errorf("%w: kubernetes client is required", ordinator.ErrInvalidArgument)
	}
	if options.Namespace == "" {
		return nil, fmt.Errorf("%w: namespace is required", ordinator.ErrInvalidArgument)
	}
	selector, err := labels.Parse(options.LabelSelector)
	if err != nil {
		return nil, fmt.Errorf("%w: label selector: %w", ordinator.ErrInvalidArgument, err)
	}
	if options.Logger == nil {
		options.Logger = logger.NewComponentLogger("kubernetes")
	}
	if options.ResyncPeriod <= 0 {
		options.ResyncPeriod = defaultResyncPeriod
		if options.LivenessWindow > 0 {
			options.ResyncPeriod = max(options.LivenessWindow/2, minResyncPeriod)
		}
	}
	if options.LivenessWindow > 0 && options.ResyncPeriod >= options.LivenessWindow {
		return nil, fmt.Errorf("%w: resync period %s must be lower than liveness window %s", ordinator.ErrInvalidArgument, options.ResyncPeriod, options.LivenessWindow)
	}
	if options.BufferSize <= 0 {
		options.BufferSize = defaultBufferSize
	}

	return &PodSource{
		logger:   options.Logger,
		options:  options,
		selector: selector,
		now:      time.Now,
	}, nil
}

// Subscribe starts a pod informer and returns its events.
// It returns once the informer cache is synced.
// The channel is closed when ctx is done
func (p *PodSource) Subscribe(ctx context.Context) (<-chan ordinator.MemberEvent, error) {
	factory := informers.NewSharedInformerFactoryWithOptions(
		p.options.Client,
		p.options.ResyncPeriod,
		informers.WithNamespace(p.options.Namespace),
		informers.WithTweakListOptions(func(options *metav1.ListOptions) {
			options.LabelSelector = p.options.LabelSelector
		}),
	)
	informer := factory.Core().V1().Pods().Informer()

	sub := &subscription{events: make(chan ordinator.MemberEvent, p.options.BufferSize)}
	if _, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj any) {
			if pod, ok := obj.(*corev1.Pod); ok {
				p.send(ctx, sub, pod, p.kind(nil, pod))
			}
		},
		UpdateFunc: func(oldObj, newObj any) {
			oldPod, _ := oldObj.(*corev1.Pod)
			if pod, ok := newObj.(*corev1.Pod); ok {
				p.send(ctx, sub, pod, p.kind(oldPod, pod))
			}
		},
		DeleteFunc: func(obj any) {
			if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
				obj = tombstone.Obj
			}
			if pod, ok := obj.(*corev1.Pod); ok {
				p.send(ctx, sub, pod, ordinator.EventDeleted)
			}
		},
	}); err != nil {
		return nil, errors.Wrap(err, "Fail to register pod event handler")
	}

	factory.Start(ctx.Done())
	if !cache.WaitForCacheSync(ctx.Done(), informer.HasSynced) {
		factory.Shutdown()
		sub.close()
		return nil, errors.Wrap(ctx.Err(), "Fail to sync pod informer")
	}

	p.logger.Info().
		Str("namespace", p.options.Namespace).
		Str("labelSelector", p.options.LabelSelector).
		Msgf("Watching pods")

	go func() {
		<-ctx.Done()
		factory.Shutdown()
		sub.close()
	}()
	return sub.events, nil
}

// isReady tells if the pod ready condition is true
func isReady(pod *corev1.Pod) bool {
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady {
			return condition.Status == corev1.ConditionTrue
		}
	}
	return false
}

// isGone tells if the pod is terminating or finished
func isGone(pod *corev1.Pod) bool {
	return pod.DeletionTimestamp != nil ||
		pod.Status.Phase == corev1.PodSucceeded ||
		pod.Status.Phase == corev1.PodFailed
}

// kind maps a pod transition to a member event kind
func (p *PodSource) kind(oldPod, pod *corev1.Pod) ordinator.EventKind {
	switch {
	case isGone(pod):
		return ordinator.EventDeleted
	case isReady(pod):
		return ordinator.EventReady
	case oldPod != nil && isReady(oldPod):
		return ordinator.EventUnreachable
	}
	return ordinator.EventCreated
}

// address returns the member address of the pod
func (p *PodSource) address(pod *corev1.Pod) string {
	if pod.Status.PodIP == "" {
		return ""
	}
	if p.options.MemberPort == 0 {
		return pod.Status.PodIP
	}
	return net.JoinHostPort(pod.Status.PodIP, strconv.Itoa(p.options.MemberPort))
}

// send hands over the event unless ctx is done
func (p *PodSource) send(ctx context.Context, sub *subscription, pod *corev1.Pod, kind ordinator.EventKind) {
	if !p.selector.Matches(labels.Set(pod.Labels)) {
		return
	}

	event := ordinator.MemberEvent{
		Kind:        kind,
		MemberID:    pod.Name,
		Incarnation: string(pod.UID),
		Address:     p.address(pod),
		Time:        p.now(),
	}

	p.logger.Trace().
		Str("memberId", event.MemberID).
		Str("incarnation", event.Incarnation).
		Str("event", event.Kind.String()).
		Msgf("Pod event received")

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.events <- event:
	case <-ctx.Done():
	}
}

// close closes the event channel once
func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
