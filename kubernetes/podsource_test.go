package kubernetes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Lord-Y/ordinator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"
)

const testNamespace = "ordinator"

func testPod(name, uid string, ready bool) *corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
			UID:       types.UID(uid),
			Labels:    map[string]string{"app": "worker"},
		},
		Status: corev1.PodStatus{
			PodIP: "10.0.0.1",
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: status},
			},
		},
	}
}

// fakeClient returns a fake clientset whose watch start is observable
// so no event is lost between the informer list and watch
func fakeClient(objects ...*corev1.Pod) (*fake.Clientset, chan struct{}) {
	client := fake.NewClientset()
	for _, pod := range objects {
		_ = client.Tracker().Add(pod)
	}
	watcherStarted := make(chan struct{})
	var once sync.Once
	client.PrependWatchReactor("*", func(action clienttesting.Action) (bool, watch.Interface, error) {
		w, err := client.Tracker().Watch(action.GetResource(), action.GetNamespace())
		if err != nil {
			return false, nil, err
		}
		once.Do(func() { close(watcherStarted) })
		return true, w, nil
	})
	return client, watcherStarted
}

func receive(t *testing.T, events <-chan ordinator.MemberEvent) ordinator.MemberEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok)
		return event
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no event received")
	}
	return ordinator.MemberEvent{}
}

func TestNewPodSource(t *testing.T) {
	assert := assert.New(t)

	_, err := NewPodSource(Options{Namespace: testNamespace})
	assert.ErrorIs(err, ordinator.ErrInvalidArgument)

	client, _ := fakeClient()
	_, err = NewPodSource(Options{Client: client})
	assert.ErrorIs(err, ordinator.ErrInvalidArgument)

	_, err = NewPodSource(Options{Client: client, Namespace: testNamespace, LabelSelector: "app in ("})
	assert.ErrorIs(err, ordinator.ErrInvalidArgument)

	source, err := NewPodSource(Options{Client: client, Namespace: testNamespace})
	assert.Nil(err)
	assert.Equal(defaultResyncPeriod, source.options.ResyncPeriod)
	assert.Equal(defaultBufferSize, source.options.BufferSize)

	source, err = NewPodSource(Options{Client: client, Namespace: testNamespace, LivenessWindow: 5 * time.Second})
	assert.Nil(err)
	assert.Equal(2500*time.Millisecond, source.options.ResyncPeriod)

	_, err = NewPodSource(Options{Client: client, Namespace: testNamespace, LivenessWindow: 5 * time.Second, ResyncPeriod: 30 * time.Second})
	assert.ErrorIs(err, ordinator.ErrInvalidArgument)

	_, err = NewPodSource(Options{Client: client, Namespace: testNamespace, LivenessWindow: time.Second})
	assert.ErrorIs(err, ordinator.ErrInvalidArgument)
}

func TestPodSource_resync(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _ := fakeClient(testPod("worker-0", "uid-0", true))
	source, err := NewPodSource(Options{
		Client:         client,
		Namespace:      testNamespace,
		LivenessWindow: 2 * time.Second,
	})
	require.Nil(t, err)
	assert.Equal(time.Second, source.options.ResyncPeriod)

	events, err := source.Subscribe(ctx)
	require.Nil(t, err)

	// the ready pod keeps being reported without any change
	for range 3 {
		event := receive(t, events)
		assert.Equal(ordinator.EventReady, event.Kind)
		assert.Equal("worker-0", event.MemberID)
		assert.Equal("uid-0", event.Incarnation)
	}
}

func TestPodSource_kind(t *testing.T) {
	assert := assert.New(t)
	client, _ := fakeClient()
	source, err := NewPodSource(Options{Client: client, Namespace: testNamespace})
	require.Nil(t, err)

	ready := testPod("worker-0", "uid-0", true)
	notReady := testPod("worker-0", "uid-0", false)
	assert.Equal(ordinator.EventReady, source.kind(nil, ready))
	assert.Equal(ordinator.EventCreated, source.kind(nil, notReady))
	assert.Equal(ordinator.EventUnreachable, source.kind(ready, notReady))
	assert.Equal(ordinator.EventCreated, source.kind(notReady, notReady))

	failed := testPod("worker-0", "uid-0", false)
	failed.Status.Phase = corev1.PodFailed
	assert.Equal(ordinator.EventDeleted, source.kind(notReady, failed))

	terminating := testPod("worker-0", "uid-0", true)
	now := metav1.Now()
	terminating.DeletionTimestamp = &now
	assert.Equal(ordinator.EventDeleted, source.kind(ready, terminating))
}

func TestPodSource_address(t *testing.T) {
	assert := assert.New(t)
	client, _ := fakeClient()
	pod := testPod("worker-0", "uid-0", true)

	source, err := NewPodSource(Options{Client: client, Namespace: testNamespace, MemberPort: 8080})
	require.Nil(t, err)
	assert.Equal("10.0.0.1:8080", source.address(pod))

	source.options.MemberPort = 0
	assert.Equal("10.0.0.1", source.address(pod))

	pod.Status.PodIP = ""
	assert.Equal("", source.address(pod))
}

func TestPodSource_Subscribe(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, watcherStarted := fakeClient(testPod("worker-0", "uid-0", true))
	source, err := NewPodSource(Options{
		Client:        client,
		Namespace:     testNamespace,
		LabelSelector: "app=worker",
		MemberPort:    9000,
	})
	require.Nil(t, err)

	events, err := source.Subscribe(ctx)
	require.Nil(t, err)

	event := receive(t, events)
	assert.Equal(ordinator.EventReady, event.Kind)
	assert.Equal("worker-0", event.MemberID)
	assert.Equal("uid-0", event.Incarnation)
	assert.Equal("10.0.0.1:9000", event.Address)

	select {
	case <-watcherStarted:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "informer never started watching")
	}

	pods := client.CoreV1().Pods(testNamespace)
	_, err = pods.Create(ctx, testPod("worker-1", "uid-1", false), metav1.CreateOptions{})
	require.Nil(t, err)
	event = receive(t, events)
	assert.Equal(ordinator.EventCreated, event.Kind)
	assert.Equal("worker-1", event.MemberID)

	_, err = pods.Update(ctx, testPod("worker-0", "uid-0", false), metav1.UpdateOptions{})
	require.Nil(t, err)
	event = receive(t, events)
	assert.Equal(ordinator.EventUnreachable, event.Kind)
	assert.Equal("worker-0", event.MemberID)

	other := testPod("other-0", "uid-2", true)
	other.Labels = map[string]string{"app": "other"}
	_, err = pods.Create(ctx, other, metav1.CreateOptions{})
	require.Nil(t, err)

	require.Nil(t, pods.Delete(ctx, "worker-1", metav1.DeleteOptions{}))
	event = receive(t, events)
	assert.Equal(ordinator.EventDeleted, event.Kind)
	assert.Equal("worker-1", event.MemberID)

	cancel()
	assert.Eventually(func() bool {
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)
}
