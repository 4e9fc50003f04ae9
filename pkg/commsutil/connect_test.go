package commsutil

import (
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
)

const connectTestPrefix = "commsutil:connect_test"

func TestConnect_InvalidURL(t *testing.T) {
	nc, err := ConnectWith("invalid://nowhere", "castrpc-test", ConnectOptions{Timeout: time.Second})
	if err == nil {
		nc.Close()
		t.Fatalf("%s - expected error for invalid URL", connectTestPrefix)
	}
	if nc != nil {
		t.Errorf("%s - expected nil connection on error", connectTestPrefix)
	}
}

func TestConnectOptions_Defaults(t *testing.T) {
	got := ConnectOptions{MaxReconnects: -1}.withDefaults()
	want := DefaultConnectOptions()

	if got.Timeout != want.Timeout || got.ReconnectWait != want.ReconnectWait {
		t.Errorf("%s - durations not defaulted: %+v", connectTestPrefix, got)
	}
	// -1 means reconnect forever and must survive defaulting.
	if got.MaxReconnects != -1 {
		t.Errorf("%s - MaxReconnects = %d, want -1", connectTestPrefix, got.MaxReconnects)
	}
}

func TestConnect_InProcessServer(t *testing.T) {
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", connectTestPrefix, err)
	}
	go ns.Start()
	defer ns.Shutdown()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", connectTestPrefix)
	}

	nc, err := Connect(ns.ClientURL(), "castrpc-test")
	if err != nil {
		t.Fatalf("%s - Connect failed: %v", connectTestPrefix, err)
	}
	defer nc.Close()

	if !nc.IsConnected() {
		t.Errorf("%s - expected an open connection", connectTestPrefix)
	}
	if nc.Opts.Name != "castrpc-test" {
		t.Errorf("%s - client name = %q", connectTestPrefix, nc.Opts.Name)
	}
	if nc.Opts.MaxReconnect != DefaultConnectOptions().MaxReconnects {
		t.Errorf("%s - MaxReconnect = %d", connectTestPrefix, nc.Opts.MaxReconnect)
	}
}
