package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector_DefaultNamespace(t *testing.T) {
	c := NewCollector("")
	if c == nil || c.registry == nil {
		t.Fatal("NewCollector returned an unusable collector")
	}
	c.SetRegisteredMethods(1)

	families, err := c.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "castrpc_registry_methods" {
			found = true
		}
	}
	if !found {
		t.Error("expected castrpc_registry_methods in default namespace")
	}
}

func TestCollector_RecordCall(t *testing.T) {
	c := NewCollector("test")

	c.RecordCall("greet", "success", 2*time.Millisecond)
	c.RecordCall("greet", "success", 3*time.Millisecond)
	c.RecordCall("greet", "failure", time.Millisecond)

	if got := testutil.ToFloat64(c.calls.WithLabelValues("greet", "success")); got != 2 {
		t.Errorf("success calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.calls.WithLabelValues("greet", "failure")); got != 1 {
		t.Errorf("failure calls = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.callDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestCollector_FailureCounters(t *testing.T) {
	c := NewCollector("test")

	c.RecordCastFailure("greet")
	c.RecordHookFailure("greet", "finally")
	c.RecordHookFailure("greet", "finally")
	c.RecordRateLimited("greet")
	c.SetRegisteredMethods(4)

	if got := testutil.ToFloat64(c.castFailures.WithLabelValues("greet")); got != 1 {
		t.Errorf("cast failures = %v", got)
	}
	if got := testutil.ToFloat64(c.hookFailures.WithLabelValues("greet", "finally")); got != 2 {
		t.Errorf("hook failures = %v", got)
	}
	if got := testutil.ToFloat64(c.rateLimited.WithLabelValues("greet")); got != 1 {
		t.Errorf("rate limited = %v", got)
	}
	if got := testutil.ToFloat64(c.registered); got != 4 {
		t.Errorf("registered = %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordCall("greet", "success", time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `test_dispatch_calls_total{method="greet",outcome="success"} 1`) {
		t.Errorf("exposition missing call counter:\n%s", body)
	}
}

func TestNoOpCollector(t *testing.T) {
	var r Recorder = NewNoOpCollector()

	// Should not panic
	r.RecordCall("m", "success", time.Second)
	r.RecordCastFailure("m")
	r.RecordHookFailure("m", "onSuccess")
	r.RecordRateLimited("m")
	r.SetRegisteredMethods(3)
}
