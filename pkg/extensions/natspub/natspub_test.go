package natspub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fluxorio/hsm/pkg/core"
	"github.com/fluxorio/hsm/pkg/hsm"
	natssrv "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func runTestNATSServer(t *testing.T) *natssrv.Server {
	t.Helper()

	opts := &natssrv.Options{
		Port: -1,
	}
	s, err := natssrv.NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(func() {
		s.Shutdown()
	})
	return s
}

func TestNATSExtensionPublishesTransitions(t *testing.T) {
	s := runTestNATSServer(t)

	nc, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer nc.Close()

	transitions := make(chan *nats.Msg, 8)
	sub, err := nc.ChanSubscribe("hsm.test.transitions", transitions)
	if err != nil {
		t.Fatalf("ChanSubscribe: %v", err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ext, err := New(Config{
		URL:    s.ClientURL(),
		Prefix: "hsm.test",
		Name:   "natspub-test",
	}, core.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ext.Close()

	m := hsm.NewMachine("published", hsm.WithLogger(core.NopLogger()))
	m.In("a").On("go").Goto("b")
	m.AddExtension(ext)

	if err := m.Initialize("a"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.EnterInitialState(); err != nil {
		t.Fatalf("EnterInitialState: %v", err)
	}
	if err := m.Fire("go", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	select {
	case msg := <-transitions:
		var payload TransitionMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Fatalf("failed to unmarshal payload: %v", err)
		}
		if payload.Machine != "published" || payload.From != "a" || payload.To != "b" {
			t.Errorf("unexpected payload: %+v", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no transition message arrived")
	}
}

func TestNATSExtensionPublishesLifecycle(t *testing.T) {
	s := runTestNATSServer(t)

	nc, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer nc.Close()

	lifecycle := make(chan *nats.Msg, 8)
	sub, err := nc.ChanSubscribe("hsm.lifecycle", lifecycle)
	if err != nil {
		t.Fatalf("ChanSubscribe: %v", err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ext, err := New(Config{URL: s.ClientURL()}, core.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ext.Close()

	pm := hsm.NewPassive("driver", hsm.WithLogger(core.NopLogger()))
	pm.In("a")
	pm.AddExtension(ext)
	if err := pm.Initialize("a"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := pm.EnterInitialState(); err != nil {
		t.Fatalf("EnterInitialState: %v", err)
	}
	if err := pm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pm.Stop()

	for _, phase := range []string{"started", "stopped"} {
		select {
		case msg := <-lifecycle:
			var payload LifecycleMessage
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				t.Fatalf("failed to unmarshal payload: %v", err)
			}
			if payload.Phase != phase {
				t.Errorf("phase = %q, want %q", payload.Phase, phase)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no %s message arrived", phase)
		}
	}
}
