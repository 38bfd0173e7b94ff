package k8spod

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/nkkko/sandboxcore/internal/remoteclient"
)

func TestCreateWaitsForReadyPod(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	c := &Client{
		cfg:    Config{Namespace: "sandboxes", Image: "daytonaio/sandbox:latest", RootDir: "/home/daytona"},
		client: clientset,
	}

	// The fake clientset never flips a created Pod to Ready on its own,
	// so mark it Ready out-of-band right after creation to exercise the
	// wait-for-ready path without a real kubelet.
	go func() {
		for {
			pods, _ := clientset.CoreV1().Pods("sandboxes").List(context.Background(), metav1.ListOptions{})
			if len(pods.Items) > 0 {
				pod := pods.Items[0]
				pod.Status.Conditions = []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}}
				clientset.CoreV1().Pods("sandboxes").UpdateStatus(context.Background(), &pod, metav1.UpdateOptions{})
				return
			}
		}
	}()

	ws, err := c.Create(context.Background(), remoteclient.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ws.ID() == "" {
		t.Errorf("expected a non-empty pod name as workspace id")
	}

	root, err := ws.GetUserRootDir(context.Background())
	if err != nil || root != "/home/daytona" {
		t.Errorf("unexpected root dir: %q, err %v", root, err)
	}
}

func TestRemoveDeletesPod(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "sandbox-1", Namespace: "sandboxes"},
	})
	c := &Client{cfg: Config{Namespace: "sandboxes"}, client: clientset}
	ws := &workspace{client: c, name: "sandbox-1"}

	if err := c.Remove(context.Background(), ws); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err := clientset.CoreV1().Pods("sandboxes").Get(context.Background(), "sandbox-1", metav1.GetOptions{})
	if err == nil {
		t.Errorf("expected pod to be deleted")
	}
}

func TestRemoveIsIdempotentOnMissingPod(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	c := &Client{cfg: Config{Namespace: "sandboxes"}, client: clientset}
	ws := &workspace{client: c, name: "does-not-exist"}

	if err := c.Remove(context.Background(), ws); err != nil {
		t.Fatalf("expected nil error for already-missing pod, got %v", err)
	}
}
